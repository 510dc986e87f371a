// Package config provides 12-factor configuration for the interceptor and its
// bridge server.
//
// Configuration is loaded from environment variables with sensible defaults.
// Matching rules (keywords, download extensions, path endpoints) can be
// extended with an optional YAML file named by RULES_FILE.
//
// Configuration Sections:
//   - Server: bridge server settings (port, host)
//   - Logging: log level and output format
//   - Timing: loader grace, object URL revoke delay, selection timeout
//   - HTTP: outbound client timeout, retries, rate limit, fetch switch
//   - RateLimit: per-IP rate limiting of the bridge server
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	rules, err := config.LoadRules(cfg.RulesFile)
//
// Environment Variables:
//   - PORT, HOST, RULES_FILE
//   - LOG_LEVEL, LOG_DEV
//   - LOADER_GRACE, REVOKE_DELAY, SELECTION_TIMEOUT
//   - HTTP_TIMEOUT, HTTP_RETRIES, HTTP_RATE_LIMIT, HTTP_USER_AGENT, FETCH_ENABLED
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
