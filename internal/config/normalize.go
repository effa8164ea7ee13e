package config

import (
	"fmt"
	"os"
	"strings"
)

// applyEnv lets environment variables (including those loaded from .env)
// override credentials and endpoints from the file.
func (c *Config) applyEnv() {
	setFromEnv(&c.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	setFromEnv(&c.OpenRouter.Model, "OPENROUTER_MODEL")
	setFromEnv(&c.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_ALLOWED_HOSTS")); v != "" {
		c.OpenRouter.AllowedHosts = splitCSV(v)
	}
	setFromEnv(&c.SentimentAPI.URL, "SENTIMENT_API_URL")
	setFromEnv(&c.SentimentAPI.APIKey, "SENTIMENT_API_KEY")
	setFromEnv(&c.Logging.Level, "REELCUT_LOG_LEVEL")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.Selection.ClassifyFailure = strings.ToLower(strings.TrimSpace(c.Selection.ClassifyFailure))
	c.Captions.Timing = strings.ToLower(strings.TrimSpace(c.Captions.Timing))
	c.Classifier.Backend = strings.ToLower(strings.TrimSpace(c.Classifier.Backend))
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name string
		v    *string
	}{
		{"paths.out_dir", &c.Paths.OutDir},
		{"paths.cache_dir", &c.Paths.CacheDir},
		{"paths.history_db", &c.Paths.HistoryDB},
		{"tools.whisper_bin", &c.Tools.WhisperBin},
		{"tools.whisper_model", &c.Tools.WhisperModel},
		{"logging.file", &c.Logging.File},
	}
	for _, f := range fields {
		v, err := expandPath(strings.TrimSpace(*f.v))
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
		*f.v = v
	}
	if c.Paths.OutDir == "" {
		c.Paths.OutDir = defaultOutDir
	}
	if c.Paths.CacheDir == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
