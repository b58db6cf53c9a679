// Package config loads the typed configuration for every pipeline
// component. Defaults come from DefaultConfig; environment
// variables loaded via godotenv + os.Getenv override them; an optional
// YAML file can set the same fields for batch/headless runs. Out-of-range
// values fail fast at construction.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries every recognized option, grouped by the component that
// consumes it.
type Config struct {
	// Capture
	CaptureSource        string `yaml:"capture_source"` // "microphone" | "system" | "file" | "stdin"
	CaptureFilePath      string `yaml:"capture_file_path"`
	CaptureDeviceIndex   int    `yaml:"capture_device_index"`
	CaptureSampleRate    int    `yaml:"capture_sample_rate"`
	CaptureChannels      int    `yaml:"capture_channels"`
	CaptureChunkMs       int    `yaml:"capture_chunk_ms"`
	CaptureHandoffCap    int    `yaml:"capture_handoff_capacity"`

	// VAD
	VADModelPath             string  `yaml:"vad_model_path"`
	VADThreshold             float64 `yaml:"vad_threshold"`
	VADMinSpeechDurationMs   int     `yaml:"vad_min_speech_duration_ms"`
	VADMinSilenceDurationMs  int     `yaml:"vad_min_silence_duration_ms"`
	VADSpeechPadMs           int     `yaml:"vad_speech_pad_ms"`
	VADMaxSegmentDurationMs  int     `yaml:"vad_max_segment_duration_ms"`
	VADPauseThresholdMs      int     `yaml:"vad_pause_threshold_ms"`
	VADAdaptive              bool    `yaml:"vad_adaptive"`
	VADCalibrationMs         int     `yaml:"vad_calibration_ms"`

	// ASR
	ASRProvider         string `yaml:"asr_provider"` // "openai" | "whispercpp"
	ASRAPIKey           string `yaml:"asr_api_key"`
	ASRModelPath        string `yaml:"asr_model_path"`
	ASRLanguage         string `yaml:"asr_language"`
	ASRDraftIntervalMs  int    `yaml:"asr_draft_interval_ms"`
	ASRPauseThresholdMs int    `yaml:"asr_pause_threshold_ms"`
	ASRMaxQueueDepth    int    `yaml:"asr_max_queue_depth"`

	DedupEnabled             bool    `yaml:"dedup_enabled"`
	DedupWindowSize          int     `yaml:"dedup_window_size"`
	DedupSimilarityThreshold float64 `yaml:"dedup_similarity_threshold"`

	// Translation
	TranslateEnabled   bool          `yaml:"translate_enabled"`
	TranslateProvider  string        `yaml:"translate_provider"` // "openai" | "gemini"
	TranslateAPIKey    string        `yaml:"translate_api_key"`
	TranslateModel     string        `yaml:"translate_model"`
	SourceLang         string        `yaml:"source_lang"`
	TargetLang         string        `yaml:"target_lang"`
	TranslateMinWords  int           `yaml:"translate_min_words"`
	CacheDir           string        `yaml:"cache_dir"`
	CacheMaxEntries    int           `yaml:"cache_max_entries"`
	CacheTTL           time.Duration `yaml:"cache_ttl"`

	// Fabric / pipeline
	QueueCaptureToVAD        int           `yaml:"queue_capture_to_vad"`
	QueueVADToASR            int           `yaml:"queue_vad_to_asr"`
	QueueASRToTranslation    int           `yaml:"queue_asr_to_translation"`
	QueueTranslationToOutput int           `yaml:"queue_translation_to_output"`
	ASRWorkerCount           int           `yaml:"asr_worker_count"`
	MonitorInterval          time.Duration `yaml:"monitor_interval"`
	MonitorCooldown          time.Duration `yaml:"monitor_cooldown"`
	ShutdownDrainTimeout     time.Duration `yaml:"shutdown_drain_timeout"`
	ShutdownHardTimeout      time.Duration `yaml:"shutdown_hard_timeout"`
	ProcessFinalOnShutdown   bool          `yaml:"process_final_on_shutdown"`

	// Output
	OutputSink          string `yaml:"output_sink"` // "jsonl" | "websocket" | "memory"
	OutputJSONLPath     string `yaml:"output_jsonl_path"`
	OutputWebsocketAddr string `yaml:"output_websocket_addr"`

	// Process
	SessionDuration time.Duration `yaml:"session_duration"` // 0 = run until signal
}

// DefaultConfig returns every field populated with its documented default.
func DefaultConfig() Config {
	return Config{
		CaptureSource:     "microphone",
		CaptureSampleRate: 16000,
		CaptureChannels:   1,
		CaptureChunkMs:    30,
		CaptureHandoffCap: 50,

		VADThreshold:            0.5,
		VADMinSpeechDurationMs:  250,
		VADMinSilenceDurationMs: 350,
		VADSpeechPadMs:          450,
		VADMaxSegmentDurationMs: 6000,
		VADPauseThresholdMs:     800,
		VADAdaptive:             true,
		VADCalibrationMs:        3000,

		ASRProvider:         "openai",
		ASRLanguage:         "auto",
		ASRDraftIntervalMs:  2000,
		ASRPauseThresholdMs: 500,
		ASRMaxQueueDepth:    2,

		DedupEnabled:             true,
		DedupWindowSize:          5,
		DedupSimilarityThreshold: 0.8,

		TranslateEnabled:  true,
		TranslateProvider: "openai",
		SourceLang:        "auto",
		TargetLang:        "en",
		TranslateMinWords: 2,
		CacheDir:          ".",
		CacheMaxEntries:   4096,
		CacheTTL:          30 * time.Minute,

		QueueCaptureToVAD:        10,
		QueueVADToASR:            10,
		QueueASRToTranslation:    5,
		QueueTranslationToOutput: 20,
		ASRWorkerCount:           2,
		MonitorInterval:          time.Second,
		MonitorCooldown:          5 * time.Second,
		ShutdownDrainTimeout:     2 * time.Second,
		ShutdownHardTimeout:      3 * time.Second,
		ProcessFinalOnShutdown:   true,

		OutputSink:      "jsonl",
		OutputJSONLPath: "output.jsonl",
	}
}

// Load applies, in order: defaults, an optional YAML file at yamlPath (if
// non-empty and present), then .env/environment-variable overrides. It
// fails fast if the resulting configuration is out of range.
func Load(yamlPath string) (Config, error) {
	godotenv.Load()

	cfg := DefaultConfig()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str(&cfg.CaptureSource, "CAPTURE_SOURCE")
	str(&cfg.CaptureFilePath, "CAPTURE_FILE_PATH")
	intVal(&cfg.CaptureDeviceIndex, "CAPTURE_DEVICE_INDEX")
	intVal(&cfg.CaptureSampleRate, "CAPTURE_SAMPLE_RATE")

	str(&cfg.VADModelPath, "VAD_MODEL_PATH")
	floatVal(&cfg.VADThreshold, "VAD_THRESHOLD")
	boolVal(&cfg.VADAdaptive, "VAD_ADAPTIVE")

	str(&cfg.ASRProvider, "ASR_PROVIDER")
	str(&cfg.ASRAPIKey, "OPENAI_API_KEY")
	str(&cfg.ASRModelPath, "ASR_MODEL_PATH")
	str(&cfg.ASRLanguage, "SOURCE_LANG")

	boolVal(&cfg.TranslateEnabled, "TRANSLATE_ENABLED")
	str(&cfg.TranslateProvider, "TRANSLATE_PROVIDER")
	str(&cfg.TranslateModel, "TRANSLATE_MODEL")
	str(&cfg.SourceLang, "SOURCE_LANG")
	str(&cfg.TargetLang, "TARGET_LANG")
	str(&cfg.CacheDir, "CACHE_DIR")

	if cfg.TranslateProvider == "gemini" {
		str(&cfg.TranslateAPIKey, "GOOGLE_API_KEY")
	} else {
		str(&cfg.TranslateAPIKey, "OPENAI_API_KEY")
	}

	str(&cfg.OutputSink, "OUTPUT_SINK")
	str(&cfg.OutputJSONLPath, "OUTPUT_JSONL_PATH")
	str(&cfg.OutputWebsocketAddr, "OUTPUT_WEBSOCKET_ADDR")

	durationVal(&cfg.SessionDuration, "SESSION_DURATION")
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVal(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatVal(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolVal(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func durationVal(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate rejects out-of-range configuration at construction time rather
// than at first use.
func (c Config) Validate() error {
	if c.CaptureSampleRate <= 0 {
		return fmt.Errorf("config: capture_sample_rate must be positive, got %d", c.CaptureSampleRate)
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("config: vad_threshold must be in [0,1], got %f", c.VADThreshold)
	}
	if c.ASRDraftIntervalMs < 1000 || c.ASRDraftIntervalMs > 3000 {
		return fmt.Errorf("config: asr_draft_interval_ms must be in [1000,3000], got %d", c.ASRDraftIntervalMs)
	}
	if c.ASRMaxQueueDepth <= 0 {
		return fmt.Errorf("config: asr_max_queue_depth must be positive, got %d", c.ASRMaxQueueDepth)
	}
	if c.ASRWorkerCount <= 0 {
		return fmt.Errorf("config: asr_worker_count must be positive, got %d", c.ASRWorkerCount)
	}
	if c.TargetLang == "" {
		return fmt.Errorf("config: target_lang is required")
	}
	if c.OutputSink != "jsonl" && c.OutputSink != "websocket" && c.OutputSink != "memory" {
		return fmt.Errorf("config: output_sink must be jsonl, websocket, or memory, got %q", c.OutputSink)
	}
	return nil
}
