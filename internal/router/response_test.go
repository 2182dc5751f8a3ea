package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseWriterDefaults(t *testing.T) {
	t.Parallel()

	w := NewResponseWriter(httptest.NewRecorder())
	assert.Equal(t, http.StatusOK, w.Status())
	assert.False(t, w.Ended())
	assert.Zero(t, w.BytesWritten())
}

func TestResponseWriterWriteHeaderOnce(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec)

	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusAccepted, w.Status())
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.True(t, w.Ended())
}

func TestResponseWriterWriteFinalizes(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec)

	n, err := w.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, w.Ended())
	assert.Equal(t, int64(5), w.BytesWritten())

	_, _ = w.Write([]byte(" world"))
	assert.Equal(t, int64(11), w.BytesWritten())
	assert.Equal(t, "hello world", rec.Body.String())
}
