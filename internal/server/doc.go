// Package server provides HTTP routing, middleware, the OAuth callback and the serve daemon's endpoints.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the YouTube authorization code flow for `credentials youtube-auth`. It validates the
// state parameter, exchanges the code for a token, insists on a refresh token and passes it to a [TokenSink]
// that stores it encrypted for the user. It only processes one callback.
//
// # Daemon Endpoints
//
// `autoshorts serve` mounts [NewDaemonRouter]:
//   - /healthz : JSON status of each [Check] (database ping, trigger listing), 503 when any fails
//   - /metrics : Prometheus exposition of the pipeline counters and histograms
//
// [Serve] runs the server until its context is cancelled and then shuts down within [ShutdownTimeout].
package server
