package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8787", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "127.0.0.1:8787", cfg.Addr())

	// Timing config
	assert.Equal(t, 5*time.Second, cfg.Timing.LoaderGrace)
	assert.Equal(t, time.Second, cfg.Timing.RevokeDelay)
	assert.Equal(t, 60*time.Second, cfg.Timing.SelectionTimeout)

	// HTTP config
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 0, cfg.HTTP.Retries)
	assert.True(t, cfg.HTTP.FetchEnabled)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":              "9000",
		"HOST":              "0.0.0.0",
		"LOG_LEVEL":         "debug",
		"LOG_DEV":           "true",
		"LOADER_GRACE":      "2s",
		"REVOKE_DELAY":      "250ms",
		"SELECTION_TIMEOUT": "1m30s",
		"HTTP_TIMEOUT":      "5s",
		"HTTP_RETRIES":      "2",
		"FETCH_ENABLED":     "false",
		"RULES_FILE":        "/etc/pagehook/rules.yaml",
		"RATE_LIMIT_RPS":    "500",
	}

	for key, value := range envVars {
		require.NoError(t, os.Setenv(key, value))
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 2*time.Second, cfg.Timing.LoaderGrace)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.RevokeDelay)
	assert.Equal(t, 90*time.Second, cfg.Timing.SelectionTimeout)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2, cfg.HTTP.Retries)
	assert.False(t, cfg.HTTP.FetchEnabled)
	assert.Equal(t, "/etc/pagehook/rules.yaml", cfg.RulesFile)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
}

func TestLoadOrDefaultOnInvalidValue(t *testing.T) {
	require.NoError(t, os.Setenv("SELECTION_TIMEOUT", "soon"))
	defer os.Unsetenv("SELECTION_TIMEOUT")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 60*time.Second, cfg.Timing.SelectionTimeout)
}

func TestParseRulesMergesOverDefaults(t *testing.T) {
	rules, err := ParseRules([]byte(`
vocabulary:
  upload_keywords: ["附件上传", "Upload"]
  download_extensions: [epub]
endpoints:
  paths:
    - contains: reports
      endpoint: /api/reports/upload
  default: /api/v2/upload
`))
	require.NoError(t, err)

	assert.Contains(t, rules.Vocabulary.UploadKeywords, "附件上传")
	assert.Contains(t, rules.Vocabulary.UploadKeywords, "上传")
	assert.Contains(t, rules.Vocabulary.DownloadExtensions, "epub")
	assert.Contains(t, rules.Vocabulary.DownloadExtensions, ".pdf")

	assert.Equal(t, "/api/reports/upload", rules.Endpoints.ForPath("/reports/cloud"))
	assert.Equal(t, "/api/cloud/upload", rules.Endpoints.ForPath("/cloud/drive"))
	assert.Equal(t, "/api/v2/upload", rules.Endpoints.ForPath("/home"))
}

func TestParseRulesRejectsInvalidYAML(t *testing.T) {
	_, err := ParseRules([]byte("vocabulary: [unterminated"))
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vocabulary:\n  download_keywords: [fetch]\n"), 0o644))

	rules, err = LoadRules(path)
	require.NoError(t, err)
	assert.Contains(t, rules.Vocabulary.DownloadKeywords, "fetch")

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
