// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Components receive a *zap.Logger and name their own child logger:
//
//	logger := logging.FromSettings("info", false)
//	sup := supervisor.New(cat, spawner, logger.Logger)
//	logger.Info("Shell starting", zap.String("port", "8000"))
package logging
