package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when no Gemini credential is in the environment.
var ErrMissingAPIKey = errors.New("API_KEY environment variable is not set")

// Config stores runtime configuration.
type Config struct {
	Gemini   GeminiConfig
	Telegram TelegramConfig
	Audio    AudioConfig
	Session  SessionConfig
	Log      LogConfig

	// File is the config file that was read, empty when none was found.
	File string
}

type GeminiConfig struct {
	APIKey        string
	APIBaseURL    string
	LiveModel     string
	AnalysisModel string
	AnalysisRPM   int
}

type TelegramConfig struct {
	BotToken    string
	ChatID      string
	APIBaseURL  string
	MinInterval time.Duration
}

type AudioConfig struct {
	RecorderCommand  string
	InputFormat      string
	InputDevice      string
	VideoInputFormat string
	VideoInputDevice string
	SampleRate       int
	RecordingsDir    string
}

type SessionConfig struct {
	FrameSamples int
}

type LogConfig struct {
	Level string
	File  string
}

type fileConfig struct {
	Gemini struct {
		APIBaseURL    string `yaml:"api_base"`
		LiveModel     string `yaml:"live_model"`
		AnalysisModel string `yaml:"analysis_model"`
		AnalysisRPM   int    `yaml:"analysis_rpm"`
	} `yaml:"gemini"`
	Telegram struct {
		BotToken      string `yaml:"bot_token"`
		ChatID        string `yaml:"chat_id"`
		APIBaseURL    string `yaml:"api_base"`
		MinIntervalMS int    `yaml:"min_interval_ms"`
	} `yaml:"telegram"`
	Audio struct {
		RecorderCommand  string `yaml:"ffmpeg_command"`
		InputFormat      string `yaml:"input_format"`
		InputDevice      string `yaml:"input_device"`
		VideoInputFormat string `yaml:"video_input_format"`
		VideoInputDevice string `yaml:"video_input_device"`
		SampleRate       int    `yaml:"sample_rate"`
		FrameSamples     int    `yaml:"frame_samples"`
		RecordingsDir    string `yaml:"recordings_dir"`
	} `yaml:"audio"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

// Load resolves configuration from an optional YAML file, environment
// variables and defaults, in increasing order of precedence. The Gemini API
// key is only read from the environment and is required.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	path := strings.TrimSpace(os.Getenv("CASEINTAKE_CONFIG"))
	if path == "" {
		path = filepath.Join(home, ".config", "caseintake", "config.yaml")
	}
	fc, found, err := readFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Gemini: GeminiConfig{
			APIKey:        firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("API_KEY")),
			APIBaseURL:    envOrDefault("GEMINI_API_BASE", firstNonEmpty(fc.Gemini.APIBaseURL, "https://generativelanguage.googleapis.com")),
			LiveModel:     envOrDefault("GEMINI_LIVE_MODEL", firstNonEmpty(fc.Gemini.LiveModel, "gemini-2.5-flash-native-audio-preview-09-2025")),
			AnalysisModel: envOrDefault("GEMINI_ANALYSIS_MODEL", firstNonEmpty(fc.Gemini.AnalysisModel, "gemini-2.5-flash")),
			AnalysisRPM:   envOrDefaultInt("GEMINI_ANALYSIS_RPM", fc.Gemini.AnalysisRPM),
		},
		Telegram: TelegramConfig{
			BotToken:    envOrDefault("TELEGRAM_BOT_TOKEN", fc.Telegram.BotToken),
			ChatID:      envOrDefault("TELEGRAM_CHAT_ID", fc.Telegram.ChatID),
			APIBaseURL:  envOrDefault("TELEGRAM_API_BASE", firstNonEmpty(fc.Telegram.APIBaseURL, "https://api.telegram.org")),
			MinInterval: time.Duration(envOrDefaultInt("TELEGRAM_MIN_INTERVAL_MS", intOr(fc.Telegram.MinIntervalMS, 1000))) * time.Millisecond,
		},
		Audio: AudioConfig{
			RecorderCommand:  envOrDefault("CASEINTAKE_FFMPEG_COMMAND", firstNonEmpty(fc.Audio.RecorderCommand, "ffmpeg")),
			InputFormat:      envOrDefault("CASEINTAKE_AUDIO_INPUT_FORMAT", firstNonEmpty(fc.Audio.InputFormat, "pulse")),
			InputDevice:      envOrDefault("CASEINTAKE_AUDIO_INPUT_DEVICE", firstNonEmpty(fc.Audio.InputDevice, "default")),
			VideoInputFormat: envOrDefault("CASEINTAKE_VIDEO_INPUT_FORMAT", firstNonEmpty(fc.Audio.VideoInputFormat, "v4l2")),
			VideoInputDevice: envOrDefault("CASEINTAKE_VIDEO_INPUT_DEVICE", firstNonEmpty(fc.Audio.VideoInputDevice, "/dev/video0")),
			SampleRate:       envOrDefaultInt("CASEINTAKE_SAMPLE_RATE", intOr(fc.Audio.SampleRate, 16000)),
			RecordingsDir:    envOrDefault("CASEINTAKE_RECORDINGS_DIR", firstNonEmpty(expandTilde(fc.Audio.RecordingsDir), filepath.Join(home, "CaseIntake"))),
		},
		Session: SessionConfig{
			FrameSamples: envOrDefaultInt("CASEINTAKE_FRAME_SAMPLES", intOr(fc.Audio.FrameSamples, 4096)),
		},
		Log: LogConfig{
			Level: envOrDefault("CASEINTAKE_LOG_LEVEL", firstNonEmpty(fc.Log.Level, "info")),
			File:  envOrDefault("CASEINTAKE_LOG_FILE", expandTilde(fc.Log.File)),
		},
	}
	if found {
		cfg.File = path
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Session.FrameSamples < 256 {
		cfg.Session.FrameSamples = 4096
	}
	if cfg.Gemini.AnalysisRPM < 0 {
		cfg.Gemini.AnalysisRPM = 0
	}
	if cfg.Telegram.MinInterval < 0 {
		cfg.Telegram.MinInterval = time.Second
	}

	if cfg.Gemini.APIKey == "" {
		return cfg, ErrMissingAPIKey
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, bool, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, false, nil
		}
		return fc, false, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, false, fmt.Errorf("failed to parse config file %q: %w", path, err)
	}
	return fc, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func intOr(value int, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
