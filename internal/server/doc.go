// Package server provides HTTP routing, middleware, and the local status API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /downloads/{identifier}").
//
// # Status API
//
// [NewRouter] wires the handlers over a [Downloads] implementation (the download coordinator):
//
//   - GET /health : liveness probe
//   - GET /downloads : every download record, most recently updated first
//   - GET /downloads/{identifier} : one record
//   - POST /downloads : request a download, answered with 202 and the current record
//   - DELETE /downloads/{identifier} : abandon a download
//   - GET /events : Server-Sent Events stream of record updates
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
