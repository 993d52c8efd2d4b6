// Package httpserver exposes the trace API over HTTP: one POST route per
// record kind, lookup and listing routes, the bulk delete route and the
// liveness probe. Routing is chi; handlers map 1:1 onto store and composer
// operations and do no work beyond decoding, validating and translating
// errors to status codes (404 not found, 400 invalid argument, 422
// malformed body).
package httpserver
