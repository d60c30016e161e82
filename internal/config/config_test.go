package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "API_KEY", "GEMINI_API_BASE", "GEMINI_LIVE_MODEL", "GEMINI_ANALYSIS_MODEL",
		"GEMINI_ANALYSIS_RPM", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "TELEGRAM_API_BASE",
		"TELEGRAM_MIN_INTERVAL_MS", "CASEINTAKE_CONFIG", "CASEINTAKE_FFMPEG_COMMAND",
		"CASEINTAKE_AUDIO_INPUT_FORMAT", "CASEINTAKE_AUDIO_INPUT_DEVICE", "CASEINTAKE_VIDEO_INPUT_FORMAT",
		"CASEINTAKE_VIDEO_INPUT_DEVICE", "CASEINTAKE_SAMPLE_RATE", "CASEINTAKE_FRAME_SAMPLES",
		"CASEINTAKE_RECORDINGS_DIR", "CASEINTAKE_LOG_LEVEL", "CASEINTAKE_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLoadAcceptsLegacyAPIKeyName(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("API_KEY", "legacy")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Gemini.APIKey != "legacy" {
		t.Fatalf("unexpected api key: %q", cfg.Gemini.APIKey)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Gemini.LiveModel != "gemini-2.5-flash-native-audio-preview-09-2025" {
		t.Fatalf("unexpected live model: %q", cfg.Gemini.LiveModel)
	}
	if cfg.Gemini.AnalysisModel != "gemini-2.5-flash" {
		t.Fatalf("unexpected analysis model: %q", cfg.Gemini.AnalysisModel)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Session.FrameSamples != 4096 {
		t.Fatalf("unexpected audio defaults: %+v %+v", cfg.Audio, cfg.Session)
	}
	if cfg.Audio.RecordingsDir != filepath.Join(home, "CaseIntake") {
		t.Fatalf("unexpected recordings dir: %q", cfg.Audio.RecordingsDir)
	}
	if cfg.Telegram.MinInterval != time.Second {
		t.Fatalf("unexpected telegram interval: %s", cfg.Telegram.MinInterval)
	}
	if cfg.Log.Level != "info" || cfg.File != "" {
		t.Fatalf("unexpected log/file config: %+v %q", cfg.Log, cfg.File)
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	path := filepath.Join(home, "caseintake.yaml")
	contents := `
gemini:
  live_model: file-live
  analysis_model: file-analysis
  analysis_rpm: 12
telegram:
  bot_token: file-token
  chat_id: "-100200"
  min_interval_ms: 250
audio:
  input_format: alsa
  frame_samples: 2048
  recordings_dir: ~/reports
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	t.Setenv("HOME", home)
	t.Setenv("CASEINTAKE_CONFIG", path)
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("GEMINI_ANALYSIS_MODEL", "env-analysis")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.File != path {
		t.Fatalf("expected file to be recorded, got %q", cfg.File)
	}
	if cfg.Gemini.LiveModel != "file-live" || cfg.Gemini.AnalysisModel != "env-analysis" || cfg.Gemini.AnalysisRPM != 12 {
		t.Fatalf("unexpected gemini config: %+v", cfg.Gemini)
	}
	if cfg.Telegram.BotToken != "file-token" || cfg.Telegram.ChatID != "42" || cfg.Telegram.MinInterval != 250*time.Millisecond {
		t.Fatalf("unexpected telegram config: %+v", cfg.Telegram)
	}
	if cfg.Audio.InputFormat != "alsa" || cfg.Session.FrameSamples != 2048 {
		t.Fatalf("unexpected audio config: %+v %+v", cfg.Audio, cfg.Session)
	}
	if cfg.Audio.RecordingsDir != filepath.Join(home, "reports") {
		t.Fatalf("expected tilde expansion, got %q", cfg.Audio.RecordingsDir)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("unexpected log level: %q", cfg.Log.Level)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	path := filepath.Join(home, "bad.yaml")
	if err := os.WriteFile(path, []byte("gemini: [unterminated"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("CASEINTAKE_CONFIG", path)
	t.Setenv("GEMINI_API_KEY", "key")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadInvalidNumericValuesFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("CASEINTAKE_SAMPLE_RATE", "bad")
	t.Setenv("CASEINTAKE_FRAME_SAMPLES", "5")
	t.Setenv("GEMINI_ANALYSIS_RPM", "-3")
	t.Setenv("TELEGRAM_MIN_INTERVAL_MS", "-1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Session.FrameSamples != 4096 {
		t.Fatalf("expected frame fallback, got %d", cfg.Session.FrameSamples)
	}
	if cfg.Gemini.AnalysisRPM != 0 {
		t.Fatalf("expected rpm clamp, got %d", cfg.Gemini.AnalysisRPM)
	}
	if cfg.Telegram.MinInterval != time.Second {
		t.Fatalf("expected interval fallback, got %s", cfg.Telegram.MinInterval)
	}
}
