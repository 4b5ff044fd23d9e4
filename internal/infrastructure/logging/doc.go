// Package logging provides structured logging for fanctld.
//
// It is a thin wrapper around log/slog that applies the configured level,
// format and destination, and stamps every record with the service name and
// version. Control-plane packages do not import this package directly; they
// accept a narrow Logger interface so tests can substitute their own.
package logging
