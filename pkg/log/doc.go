/*
Package log provides structured logging for rustyrobot using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for common logging patterns. All logs include timestamps and support filtering
by severity level.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithComponent("fetcher")
	logger.Info().Str("window", "2018-01-01..2018-01-02").Msg("requesting")

Every long-lived service derives a component logger once at startup and passes
it down; request-scoped fields (topic, group, repo) are attached with the
WithTopic/WithGroup/WithRepo helpers.
*/
package log
