// Package server hosts the HTTP listeners of insuratask.
//
// HTTPServer serves the REST API together with the Kubernetes style health
// endpoints (/healthz, /readyz, /healthz/detailed). Readiness pings the
// database and fails once shutdown begins.
//
// MetricsServer exposes Prometheus metrics on a dedicated port so that
// operational data stays off the API listener.
package server
