package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Paths contains output, cache and history locations.
type Paths struct {
	OutDir    string `toml:"out_dir" yaml:"out_dir"`
	CacheDir  string `toml:"cache_dir" yaml:"cache_dir"`
	HistoryDB string `toml:"history_db" yaml:"history_db"` // empty disables run history
}

// Selection controls which scored segments become clips.
type Selection struct {
	Limit           int    `toml:"limit" yaml:"limit"`
	ClassifyFailure string `toml:"classify_failure" yaml:"classify_failure"` // abort | skip
}

// Captions controls burned-in caption timing and style.
type Captions struct {
	Timing   string `toml:"timing" yaml:"timing"` // exact | whole_seconds
	FontName string `toml:"font_name" yaml:"font_name"`
	FontSize int    `toml:"font_size" yaml:"font_size"`
	MarginV  int    `toml:"margin_v" yaml:"margin_v"`
}

// Render contains encoder and worker pool settings.
type Render struct {
	Workers           int    `toml:"workers" yaml:"workers"` // 0 means one per CPU
	Preset            string `toml:"preset" yaml:"preset"`
	CRF               int    `toml:"crf" yaml:"crf"`
	AudioBitrate      string `toml:"audio_bitrate" yaml:"audio_bitrate"`
	Threads           int    `toml:"threads" yaml:"threads"`
	VerifyDuration    bool   `toml:"verify_duration" yaml:"verify_duration"`
	VerifyToleranceMS int    `toml:"verify_tolerance_ms" yaml:"verify_tolerance_ms"`
}

// Tools lists external executables and models.
type Tools struct {
	FFmpeg          string `toml:"ffmpeg" yaml:"ffmpeg"`
	FFprobe         string `toml:"ffprobe" yaml:"ffprobe"`
	WhisperBin      string `toml:"whisper_bin" yaml:"whisper_bin"`
	WhisperModel    string `toml:"whisper_model" yaml:"whisper_model"`
	WhisperLanguage string `toml:"whisper_language" yaml:"whisper_language"`
	WhisperThreads  int    `toml:"whisper_threads" yaml:"whisper_threads"`
	YtDlp           string `toml:"yt_dlp" yaml:"yt_dlp"`
	YtDlpFormat     string `toml:"yt_dlp_format" yaml:"yt_dlp_format"`
}

// Classifier selects the sentiment backend.
type Classifier struct {
	Backend string `toml:"backend" yaml:"backend"` // lexicon | openrouter | http
}

// OpenRouter contains chat-completions settings for the LLM backend.
type OpenRouter struct {
	APIKey       string   `toml:"api_key" yaml:"api_key"`
	Model        string   `toml:"model" yaml:"model"`
	BaseURL      string   `toml:"base_url" yaml:"base_url"`
	AllowedHosts []string `toml:"allowed_hosts" yaml:"allowed_hosts"`
}

// SentimentAPI contains settings for a hosted text-classification endpoint.
type SentimentAPI struct {
	URL               string `toml:"url" yaml:"url"`
	APIKey            string `toml:"api_key" yaml:"api_key"`
	RequestsPerMinute int    `toml:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds    int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// S3 configures s3:// source acquisition. Empty credentials fall back to the
// default AWS credential chain.
type S3 struct {
	Region    string `toml:"region" yaml:"region"`
	Endpoint  string `toml:"endpoint" yaml:"endpoint"`
	AccessKey string `toml:"access_key" yaml:"access_key"`
	SecretKey string `toml:"secret_key" yaml:"secret_key"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level      string `toml:"level" yaml:"level"`
	Format     string `toml:"format" yaml:"format"` // text | json
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
}

// Config encapsulates all configuration values for reelcut.
type Config struct {
	Paths        Paths        `toml:"paths" yaml:"paths"`
	Selection    Selection    `toml:"selection" yaml:"selection"`
	Captions     Captions     `toml:"captions" yaml:"captions"`
	Render       Render       `toml:"render" yaml:"render"`
	Tools        Tools        `toml:"tools" yaml:"tools"`
	Classifier   Classifier   `toml:"classifier" yaml:"classifier"`
	OpenRouter   OpenRouter   `toml:"openrouter" yaml:"openrouter"`
	SentimentAPI SentimentAPI `toml:"sentiment_api" yaml:"sentiment_api"`
	S3           S3           `toml:"s3" yaml:"s3"`
	Logging      Logging      `toml:"logging" yaml:"logging"`
}

// VerifyTolerance returns the allowed rendered-duration drift, or 0 when
// verification is disabled.
func (c *Config) VerifyTolerance() time.Duration {
	if !c.Render.VerifyDuration {
		return 0
	}
	return time.Duration(c.Render.VerifyToleranceMS) * time.Millisecond
}

// Load locates and parses a configuration file and applies environment
// overrides. It does not validate: callers apply flag overrides first and
// then call Validate. The resolved path and whether it existed are returned.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		b, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decode(resolvedPath, b, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func decode(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return toml.Unmarshal(b, cfg)
	}
}

// resolveConfigPath checks an explicit path first, then ./reelcut.toml, then
// the per-user file.
func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, fmt.Errorf("config file %s does not exist", expanded)
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	projectPath, err := filepath.Abs("reelcut.toml")
	if err != nil {
		return "", false, err
	}
	userPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	for _, p := range []string{projectPath, userPath} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true, nil
		}
	}
	return userPath, false, nil
}

// DefaultConfigPath returns the per-user configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reelcut/config.toml")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	return filepath.Clean(pathValue), nil
}
