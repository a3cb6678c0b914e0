// Package webui serves the single-page diagram form.
//
// GET / shows the form with an example script. POST /generate runs the
// submitted script through a sandbox.Runner and renders the exit status,
// the captured streams and the produced image inline. Requests are handled
// synchronously with no caching or retries. When server.rate_limit_per_min
// is set, POST /generate is throttled per client IP.
package webui
