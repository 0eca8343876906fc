// Package logging provides structured logging for meshsd.
//
// This package wraps a package-global zap logger with convenience functions
// used throughout the node. Logging is silent unless a level is given on the
// command line or through MESHSD_LOG_LEVEL.
//
// # Log Levels
//
//   - Debug: datagram hex dumps, dropped datagrams, empty rounds
//   - Info: resolutions, responder and scheduler lifecycle
//   - Warn: failed discovery rounds, configuration reload problems
//   - Error: startup failures
//
// # Usage
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
//	logging.Info("Watch registered",
//	    zap.String("name", "ceiling"),
//	    zap.String("type", "rgbw"),
//	)
//
// Components that want their own name in the output use Named:
//
//	log := logging.Named("scheduler")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
