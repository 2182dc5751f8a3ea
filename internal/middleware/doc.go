// Package middleware provides dispatch handlers for cross-cutting
// concerns: request identification, access logging, metrics, rate
// limiting, circuit breaking, and CORS.
//
// Middleware here are ordinary router handlers registered on wildcard
// routes ahead of application routes. Each does its work and passes
// control on with Context.Next, or terminates the dispatch by writing
// the response or failing it.
package middleware
