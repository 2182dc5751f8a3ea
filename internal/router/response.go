package router

import "net/http"

// ResponseWriter wraps http.ResponseWriter to track the status code and
// whether the response has been finalized. The dispatch engine uses it to
// guarantee exactly one finalization per request: handlers finalize by
// writing, and the engine's fallback finalization only fires while the
// response is still untouched.
type ResponseWriter struct {
	http.ResponseWriter
	status        int
	headerWritten bool
	bytesWritten  int64
}

// NewResponseWriter wraps w with a default status of 200 OK.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

// WriteHeader captures the status code and writes it through. Subsequent
// calls are ignored.
func (w *ResponseWriter) WriteHeader(code int) {
	if w.headerWritten {
		return
	}
	w.status = code
	w.headerWritten = true
	w.ResponseWriter.WriteHeader(code)
}

// Write writes data through, marking the response finalized.
func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.headerWritten = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Status returns the status code sent, or 200 if none was set explicitly.
func (w *ResponseWriter) Status() int {
	return w.status
}

// BytesWritten returns the number of body bytes written so far.
func (w *ResponseWriter) BytesWritten() int64 {
	return w.bytesWritten
}

// Ended reports whether the response has been finalized (header or body
// written).
func (w *ResponseWriter) Ended() bool {
	return w.headerWritten
}

// Flush implements http.Flusher for streaming handlers.
func (w *ResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Compile-time interface assertion.
var _ http.Flusher = (*ResponseWriter)(nil)
