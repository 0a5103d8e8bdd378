// Package logging wraps log/slog with the bridge's conventions.
//
// Every entry carries service and version attributes. Format and level
// come from config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json for production, text for development
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("starting service", "port", 8080)
//
//	webhookLog := logger.With("component", "webhook")
//
// Never log the Rachio API key or webhook external IDs in full; log a
// short prefix when an identifier is needed for correlation.
package logging
