// Package telemetry provides observability support for floodgate.
//
// # Components
//
//   - logging: structured slog-based logging
//
// Metrics live next to the code they instrument (see pkg/limits) and are
// exposed through the server's /metrics endpoint.
//
// # Identity Protection
//
// Raw caller identifiers never reach a log line: everything that logs a
// per-caller key logs the opaque hash from pkg/identity instead.
package telemetry
