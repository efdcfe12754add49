// Package observability provides structured logging and Prometheus metrics
// for the page guard.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - request-scoped loggers carrying the chi request id
//   - access decision, lockdown and authorization counters
//   - an HTTP middleware counting requests by method and status
package observability
