// Package api implements the HTTP surface of the estimation service:
// bulk sample import, run execution and run retrieval. Handlers decode
// and validate with the shared helpers and map internal errors to
// status codes without leaking details.
package api
