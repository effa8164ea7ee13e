package config

import (
	"strings"

	"github.com/forPelevin/reelcut/internal/domain/highlights"
	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports/adapters/openrouter"
	"github.com/forPelevin/reelcut/internal/types"
)

// Validate ensures the configuration is usable. Failures are
// KindConfiguration errors.
func (c *Config) Validate() error {
	if c.Selection.Limit <= 0 {
		return types.Configf("selection.limit must be > 0, got %d", c.Selection.Limit)
	}
	switch highlights.ClassifyPolicy(c.Selection.ClassifyFailure) {
	case highlights.ClassifyAbort, highlights.ClassifySkip:
	default:
		return types.Configf("selection.classify_failure must be %q or %q, got %q",
			highlights.ClassifyAbort, highlights.ClassifySkip, c.Selection.ClassifyFailure)
	}
	if !subtitles.Timing(c.Captions.Timing).Valid() {
		return types.Configf("captions.timing must be %q or %q, got %q",
			subtitles.TimingExact, subtitles.TimingWholeSeconds, c.Captions.Timing)
	}
	if c.Captions.FontSize <= 0 {
		return types.Configf("captions.font_size must be > 0")
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Tools.WhisperModel) == "" {
		return types.Configf("tools.whisper_model is required")
	}
	if err := c.validateClassifier(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return types.Configf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateRender() error {
	if c.Render.Workers < 0 {
		return types.Configf("render.workers must be >= 0")
	}
	if c.Render.CRF < 0 || c.Render.CRF > 51 {
		return types.Configf("render.crf must be between 0 and 51")
	}
	if c.Render.Threads < 0 {
		return types.Configf("render.threads must be >= 0")
	}
	if c.Render.VerifyDuration && c.Render.VerifyToleranceMS <= 0 {
		return types.Configf("render.verify_tolerance_ms must be > 0 when verify_duration is set")
	}
	return nil
}

func (c *Config) validateClassifier() error {
	switch c.Classifier.Backend {
	case BackendLexicon:
		return nil
	case BackendOpenRouter:
		if c.OpenRouter.APIKey == "" {
			return types.Configf("OPENROUTER_API_KEY is required for the openrouter classifier (set it in .env)")
		}
		if err := openrouter.ValidateBaseURL(c.OpenRouter.BaseURL, c.OpenRouter.AllowedHosts); err != nil {
			return types.NewError(types.KindConfiguration, "", err)
		}
		return nil
	case BackendHTTP:
		if strings.TrimSpace(c.SentimentAPI.URL) == "" {
			return types.Configf("SENTIMENT_API_URL is required for the http classifier")
		}
		if c.SentimentAPI.RequestsPerMinute < 0 {
			return types.Configf("sentiment_api.requests_per_minute must be >= 0")
		}
		return nil
	default:
		return types.Configf("classifier.backend must be lexicon, openrouter or http, got %q", c.Classifier.Backend)
	}
}
