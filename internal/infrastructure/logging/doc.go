// Package logging provides structured logging for vhtoggle.
//
// It wraps the standard log/slog package so every component logs with the
// same handler, level and default fields (service, version).
//
// Configuration comes from the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "text"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// The CLI prints results on stdout, so the default output is stderr.
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("cycle finished", "state", "CONNECTED")
//	logger.Error("saving state", "error", err)
package logging
