/*
Package log provides structured logging for the MOM middleware using zerolog.

It wraps zerolog with a single global logger initialized via Init, plus
helpers that derive child loggers carrying the common context fields
(component, instance). Console output is the default; JSON output is
intended for production deployments.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	brokerLog := log.WithInstance(log.WithComponent("broker"), "node-1")
	brokerLog.Info().Str("topic", "orders").Msg("message enqueued")
*/
package log
