package bootstrap

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"caseintake/internal/config"
	"caseintake/internal/media"
	"caseintake/internal/ports"
	"caseintake/internal/providers/gemini"
	"caseintake/internal/providers/telegram"
	"caseintake/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Recorder *usecase.Recorder
	Form     *usecase.ReportForm
	Config   config.Config
}

// Build wires all backend dependencies for the current runtime.
func Build(ctx context.Context, cfg config.Config, log logrus.FieldLogger, eventSink ports.EventSink) (Services, error) {
	analyzer, err := gemini.NewAnalyzer(ctx, gemini.AnalysisConfig{
		APIKey:            cfg.Gemini.APIKey,
		APIBaseURL:        cfg.Gemini.APIBaseURL,
		Model:             cfg.Gemini.AnalysisModel,
		RequestsPerMinute: cfg.Gemini.AnalysisRPM,
	})
	if err != nil {
		return Services{}, fmt.Errorf("failed to create analysis client: %w", err)
	}

	deliverer := telegram.NewClient(telegram.Config{
		BotToken:    cfg.Telegram.BotToken,
		ChatID:      cfg.Telegram.ChatID,
		APIBaseURL:  cfg.Telegram.APIBaseURL,
		MinInterval: cfg.Telegram.MinInterval,
	})
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		log.Warn("Telegram bot token or chat id is not set; sending reports will fail")
	}

	form := usecase.NewReportForm(analyzer, deliverer, eventSink, log.WithField("component", "form"))

	recorder := usecase.NewRecorder(
		media.NewFFMPEGDevices(media.Config{
			Command:          cfg.Audio.RecorderCommand,
			InputFormat:      cfg.Audio.InputFormat,
			InputDevice:      cfg.Audio.InputDevice,
			VideoInputFormat: cfg.Audio.VideoInputFormat,
			VideoInputDevice: cfg.Audio.VideoInputDevice,
			SampleRate:       cfg.Audio.SampleRate,
			RecordingsDir:    cfg.Audio.RecordingsDir,
		}),
		gemini.NewLiveProvider(gemini.LiveConfig{
			APIKey:     cfg.Gemini.APIKey,
			APIBaseURL: cfg.Gemini.APIBaseURL,
		}),
		form,
		eventSink,
		log.WithField("component", "recorder"),
		usecase.RecorderConfig{
			LiveModel:    cfg.Gemini.LiveModel,
			SampleRate:   cfg.Audio.SampleRate,
			FrameSamples: cfg.Session.FrameSamples,
		},
	)

	return Services{Recorder: recorder, Form: form, Config: cfg}, nil
}
