package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"caseintake/internal/bootstrap"
	"caseintake/internal/config"
	"caseintake/internal/domain"
	"caseintake/internal/usecase"
)

const (
	eventRecording = "caseintake:recording"
	eventDraft     = "caseintake:draft"
	eventReport    = "caseintake:report"
	eventError     = "caseintake:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context
	cfg config.Config
	log logrus.FieldLogger

	recorder *usecase.Recorder
	form     *usecase.ReportForm
	bootErr  error
}

func NewApp(cfg config.Config, log logrus.FieldLogger) *App {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &App{cfg: cfg, log: log}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a.cfg, a.log, a)
	if err != nil {
		a.bootErr = err
		a.log.WithError(err).Error("startup failed")
		a.ReportError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.recorder = services.Recorder
	a.form = services.Form
	a.FormChanged(a.form.Snapshot())
}

func (a *App) shutdown(_ context.Context) {
	if a.recorder == nil {
		return
	}
	if err := a.recorder.Stop(); err != nil {
		a.log.WithError(err).Warn("recording did not stop cleanly on shutdown")
	}
}

// ToggleRecording starts a recording of kind ("audio" or "video"), or stops
// the active one.
func (a *App) ToggleRecording(kind string) (domain.FormState, error) {
	if err := a.requireReady(); err != nil {
		return domain.FormState{}, err
	}
	if err := a.recorder.Toggle(a.ctx, domain.RecordingState(kind)); err != nil {
		a.fail(err)
		return a.form.Snapshot(), err
	}
	return a.form.Snapshot(), nil
}

// StopRecording ends the active recording, if any.
func (a *App) StopRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.recorder.Stop()
}

func (a *App) SetTitle(title string) {
	if a.form != nil {
		a.form.SetTitle(title)
	}
}

func (a *App) SetReporter(reporter string) {
	if a.form != nil {
		a.form.SetReporter(reporter)
	}
}

func (a *App) SetReportText(text string) {
	if a.form != nil {
		a.form.SetBody(text)
	}
}

// AnalyzeReport runs web-grounded analysis of the current draft.
func (a *App) AnalyzeReport() (domain.AnalyzedReportData, error) {
	if err := a.requireReady(); err != nil {
		return domain.AnalyzedReportData{}, err
	}
	report, err := a.form.RequestAnalysis(a.ctx)
	if err != nil {
		a.fail(err)
		return domain.AnalyzedReportData{}, err
	}
	return report, nil
}

// SendReport delivers the analyzed report, or the raw draft, to Telegram.
func (a *App) SendReport() (domain.DeliveryResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.DeliveryResult{}, err
	}
	result, err := a.form.RequestDelivery(a.ctx)
	if err != nil {
		a.fail(err)
		return domain.DeliveryResult{}, err
	}
	return result, nil
}

// GetState returns the form snapshot.
func (a *App) GetState() domain.FormState {
	if a.form == nil {
		if a.bootErr != nil {
			return domain.FormState{Error: a.bootErr.Error()}
		}
		return domain.FormState{}
	}
	return a.form.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	telegram := "not configured"
	if a.cfg.Telegram.BotToken != "" && a.cfg.Telegram.ChatID != "" {
		telegram = "configured"
	}
	return map[string]string{
		"liveModel":        a.cfg.Gemini.LiveModel,
		"analysisModel":    a.cfg.Gemini.AnalysisModel,
		"telegram":         telegram,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"videoInput":       a.cfg.Audio.VideoInputDevice,
		"recordingsDir":    a.cfg.Audio.RecordingsDir,
		"configFile":       a.cfg.File,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.recorder == nil || a.form == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// fail reports err to the UI. Session failures are reported by the
// recorder itself.
func (a *App) fail(err error) {
	if errors.Is(err, usecase.ErrRecordingActive) || errors.Is(err, usecase.ErrBusy) {
		return
	}
	code := domain.CodeOf(err)
	if code == domain.ErrorCodeSession {
		return
	}
	a.ReportError(code, err.Error())
}

// RecordingStateChanged emits recording lifecycle updates to the frontend.
func (a *App) RecordingStateChanged(state domain.RecordingState, reason domain.RecordingReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecording, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": recordingReasonMessage(reason),
	})
}

// DraftChanged emits the draft after backend-side edits such as transcripts.
func (a *App) DraftChanged(draft domain.ReportDraft) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventDraft, draft)
}

func (a *App) FormChanged(state domain.FormState) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventReport, state)
}

// ReportError emits backend errors to the UI.
func (a *App) ReportError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func recordingReasonMessage(reason domain.RecordingReason) string {
	switch reason {
	case domain.RecordingReasonStarted:
		return "Rakaman bermula"
	case domain.RecordingReasonStopped:
		return "Rakaman dihentikan"
	case domain.RecordingReasonSessionFailed:
		return "Sesi rakaman gagal"
	case domain.RecordingReasonSessionClosed:
		return "Sesi rakaman ditutup"
	case domain.RecordingReasonDenied:
		return "Akses mikrofon/kamera ditolak"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Aplikasi gagal dimulakan"
	case domain.ErrorCodePermission:
		return "Tidak dapat mengakses mikrofon/kamera. Sila semak kebenaran."
	case domain.ErrorCodeSession:
		return "Ralat berlaku dengan sesi rakaman."
	default:
		if detail == "" {
			return "Ralat tidak diketahui"
		}
		return detail
	}
}
