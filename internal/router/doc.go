// Package router implements the request-routing and dispatch engine at the
// core of the gateway.
//
// A Router owns an ordered, concurrently mutable table of routes. Every
// inbound request gets a Context bound to a snapshot of that table; the
// Context walks the snapshot, matching routes and invoking their handlers in
// registration order until a handler terminates the response or the scan is
// exhausted. A handler fault switches the Context into failure mode, in
// which only failure handlers run, resuming from the currently matched route
// forward. Faults that escape failure handling, and scans that never match,
// are finalized through the Router's per-status error handler registry.
//
// Routers nest: MountSubRouter registers a wildcard route whose handler
// re-dispatches the request against another Router's table under the matched
// path prefix.
package router
