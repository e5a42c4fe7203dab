// Package pkg provides shared utilities for the cdba board-control harness.
//
// This package contains common functionality used across the shared
// transport library, the client, and the server, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error types for protocol, transport, and device errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with harness-specific context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSession, "power cycle", "remaining", 2)
//
// # Errors
//
// Common harness errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrOverflow) {
//	    // Ring buffer overflow: fatal protocol error
//	}
package pkg
