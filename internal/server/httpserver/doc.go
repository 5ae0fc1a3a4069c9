// Package httpserver provides the HTTP shell for glyphd.
//
// It exposes the token, beacon, proof, and audit operations as a
// RESTful API on the standard library net/http mux, wrapped in a
// middleware chain for request IDs, logging, panic recovery, rate
// limiting, and Prometheus request metrics.
package httpserver
