/*
Package log provides structured logging for the controller using zerolog.

The package keeps a single global Logger that is configured once at
startup with Init. Components derive child loggers with WithComponent,
and per-resource loggers with WithResource:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("reconciler")
	logger.Info().Str("loop", "nodes").Msg("Cycle completed")

Console output is human-readable and meant for local runs; JSON output is
meant for log aggregation inside the cluster (LOG_FORMAT=json).
*/
package log
