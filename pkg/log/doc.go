/*
Package log provides structured logging for milli-core, built on zerolog.

The log package wraps zerolog to provide JSON- or console-formatted
logging with component-specific child loggers, a configurable level,
and a handful of domain helpers for attaching the identifiers that
recur across the engine's log lines.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Init sets the package-level Logger once, typically from cmd/core's
--log-level/--log-json flags. Leaving Output nil logs to stdout.

# Component loggers

WithComponent returns a child logger carrying a "component" field, one
per subsystem: "kvstore", "pipeline", "ranking", "querygraph", "facets",
"consistency". Each subsystem grabs its own child logger once at
construction rather than tagging every call site by hand:

	logger := log.WithComponent("pipeline")
	logger.Info().Int("batch_size", len(batch)).Msg("running batch")

# Request-scoped helpers

WithIndex, WithBatch, and WithQuery attach the identifiers a log line
about one request needs — an index directory, a batch id, or the query
string a Search call is resolving. WithQuery truncates its argument to
120 characters before attaching it, since a pathological query string
should not dominate a log line.
*/
package log
