package ports

import (
	"context"
	"io"

	"caseintake/internal/domain"
)

// MediaRequest describes which devices a recording needs.
type MediaRequest struct {
	Audio bool
	Video bool
	// ID names the recording; captures that write files use it.
	ID string
}

// MediaStream is a live capture. Audio yields little-endian float32 mono
// samples at the configured sample rate.
type MediaStream interface {
	Audio() io.Reader
	// ActiveTracks is the number of device tracks still held open.
	ActiveTracks() int
	// Stop releases every track. It is safe to call more than once.
	Stop() error
}

// MediaDevices grants access to microphone and camera.
type MediaDevices interface {
	Open(ctx context.Context, req MediaRequest) (MediaStream, error)
}

// SessionConfig describes the realtime transcription session to open.
type SessionConfig struct {
	Model              string
	InputTranscription bool
}

// TranscriptionSession is a bidirectional realtime session. SendMedia
// queues payloads until the session handshake has completed.
type TranscriptionSession interface {
	SendMedia(ctx context.Context, chunk domain.MediaChunk) error
	// Transcripts delivers input transcription fragments in arrival order
	// and is closed when the session ends.
	Transcripts() <-chan string
	// Err is the reason the session ended, nil for a clean close.
	Err() error
	Close() error
}

// TranscriptionProvider opens realtime transcription sessions. Connect must
// not wait for the session handshake.
type TranscriptionProvider interface {
	Connect(ctx context.Context, cfg SessionConfig) (TranscriptionSession, error)
}

// Analyzer turns a draft into a structured report.
type Analyzer interface {
	Analyze(ctx context.Context, title, reporter, body string) (domain.AnalyzedReportData, error)
}

// Deliverer dispatches a structured report to a messaging channel.
type Deliverer interface {
	Send(ctx context.Context, report domain.AnalyzedReportData) (domain.DeliveryResult, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	RecordingStateChanged(state domain.RecordingState, reason domain.RecordingReason)
	DraftChanged(draft domain.ReportDraft)
	FormChanged(state domain.FormState)
	ReportError(code domain.ErrorCode, detail string)
}
