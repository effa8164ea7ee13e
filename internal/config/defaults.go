package config

const (
	defaultOutDir          = "out"
	defaultCacheDir        = ".cache"
	defaultHistoryDB       = ".cache/history.db"
	defaultLimit           = 3
	defaultClassifyFailure = "abort"
	defaultCaptionTiming   = "exact"
	defaultCaptionFont     = "Arial"
	defaultCaptionFontSize = 48
	defaultCaptionMarginV  = 120
	defaultPreset          = "veryfast"
	defaultCRF             = 18
	defaultAudioBitrate    = "192k"
	defaultEncoderThreads  = 4
	defaultVerifyTolMS     = 100
	defaultFFmpeg          = "ffmpeg"
	defaultFFprobe         = "ffprobe"
	defaultWhisperBin      = ".cache/bin/whisper.cpp"
	defaultWhisperModel    = ".cache/models/ggml-base.bin"
	defaultWhisperLanguage = "auto"
	defaultYtDlp           = "yt-dlp"
	defaultYtDlpFormat     = "best[ext=mp4]"
	defaultBackend         = BackendLexicon
	defaultOpenRouterModel = "z-ai/glm-4.5-air:free"
	defaultOpenRouterURL   = "https://openrouter.ai"
	defaultSentimentRPM    = 60
	defaultSentimentTO     = 30
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultLogMaxSizeMB    = 20
	defaultLogMaxBackups   = 3
	defaultLogMaxAgeDays   = 14
)

// Classifier backends.
const (
	BackendLexicon    = "lexicon"
	BackendOpenRouter = "openrouter"
	BackendHTTP       = "http"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutDir:    defaultOutDir,
			CacheDir:  defaultCacheDir,
			HistoryDB: defaultHistoryDB,
		},
		Selection: Selection{
			Limit:           defaultLimit,
			ClassifyFailure: defaultClassifyFailure,
		},
		Captions: Captions{
			Timing:   defaultCaptionTiming,
			FontName: defaultCaptionFont,
			FontSize: defaultCaptionFontSize,
			MarginV:  defaultCaptionMarginV,
		},
		Render: Render{
			Preset:            defaultPreset,
			CRF:               defaultCRF,
			AudioBitrate:      defaultAudioBitrate,
			Threads:           defaultEncoderThreads,
			VerifyDuration:    true,
			VerifyToleranceMS: defaultVerifyTolMS,
		},
		Tools: Tools{
			FFmpeg:          defaultFFmpeg,
			FFprobe:         defaultFFprobe,
			WhisperBin:      defaultWhisperBin,
			WhisperModel:    defaultWhisperModel,
			WhisperLanguage: defaultWhisperLanguage,
			YtDlp:           defaultYtDlp,
			YtDlpFormat:     defaultYtDlpFormat,
		},
		Classifier: Classifier{
			Backend: defaultBackend,
		},
		OpenRouter: OpenRouter{
			Model:   defaultOpenRouterModel,
			BaseURL: defaultOpenRouterURL,
		},
		SentimentAPI: SentimentAPI{
			RequestsPerMinute: defaultSentimentRPM,
			TimeoutSeconds:    defaultSentimentTO,
		},
		Logging: Logging{
			Level:      defaultLogLevel,
			Format:     defaultLogFormat,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
	}
}
