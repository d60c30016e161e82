package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"caseintake/internal/domain"
	"caseintake/internal/ports"
)

// ErrRecordingActive is returned by Start while a recording is running or
// still being torn down.
var ErrRecordingActive = errors.New("a recording is already active")

// RecorderConfig controls capture and live session settings.
type RecorderConfig struct {
	LiveModel    string
	SampleRate   int
	FrameSamples int
}

// Recorder owns the media stream, audio pump and live transcription session
// of at most one recording.
type Recorder struct {
	devices  ports.MediaDevices
	provider ports.TranscriptionProvider
	sink     RecordingSink
	events   ports.EventSink
	log      logrus.FieldLogger
	cfg      RecorderConfig
	newID    func() string

	mu      sync.Mutex
	state   domain.RecordingState
	current *activeRecording
}

type activeRecording struct {
	id      string
	kind    domain.RecordingState
	log     logrus.FieldLogger
	stream  ports.MediaStream
	session ports.TranscriptionSession
	cancel  context.CancelFunc

	audioDone  chan struct{}
	eventsDone chan struct{}
}

func NewRecorder(
	devices ports.MediaDevices,
	provider ports.TranscriptionProvider,
	sink RecordingSink,
	events ports.EventSink,
	log logrus.FieldLogger,
	cfg RecorderConfig,
) *Recorder {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameSamples < 256 {
		cfg.FrameSamples = 4096
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Recorder{
		devices:  devices,
		provider: provider,
		sink:     sink,
		events:   events,
		log:      log,
		cfg:      cfg,
		newID:    uuid.NewString,
	}
}

// State returns the current recording kind, none once teardown completed.
func (r *Recorder) State() domain.RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Toggle stops an active recording, otherwise starts one of kind.
// The state check and the start happen under one lock.
func (r *Recorder) Toggle(ctx context.Context, kind domain.RecordingState) error {
	r.mu.Lock()
	if r.state != domain.RecordingNone {
		r.mu.Unlock()
		return r.Stop()
	}
	defer r.mu.Unlock()
	return r.startLocked(ctx, kind)
}

// Start opens the devices and the live session and begins streaming audio.
// It does not wait for the session handshake.
func (r *Recorder) Start(ctx context.Context, kind domain.RecordingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(ctx, kind)
}

func (r *Recorder) startLocked(ctx context.Context, kind domain.RecordingState) error {
	if !kind.Valid() {
		return domain.NewError(domain.ErrorCodeValidation, fmt.Errorf("unknown recording kind %q", kind))
	}
	if r.state != domain.RecordingNone {
		return ErrRecordingActive
	}

	id := r.newID()
	log := r.log.WithFields(logrus.Fields{"recording": id, "kind": string(kind)})

	stream, err := r.devices.Open(ctx, ports.MediaRequest{
		Audio: true,
		Video: kind == domain.RecordingVideo,
		ID:    id,
	})
	if err != nil {
		log.WithError(err).Warn("media device access failed")
		r.sink.Fail(msgPermission)
		r.events.RecordingStateChanged(domain.RecordingNone, domain.RecordingReasonDenied)
		return domain.NewError(domain.ErrorCodePermission, err)
	}

	recCtx, cancel := context.WithCancel(ctx)
	session, err := r.provider.Connect(recCtx, ports.SessionConfig{
		Model:              r.cfg.LiveModel,
		InputTranscription: true,
	})
	if err != nil {
		cancel()
		if stopErr := stream.Stop(); stopErr != nil {
			log.WithError(stopErr).Warn("failed to release media after session error")
		}
		log.WithError(err).Error("live session could not be opened")
		r.sink.Fail(msgSessionError)
		r.events.RecordingStateChanged(domain.RecordingNone, domain.RecordingReasonSessionFailed)
		return domain.NewError(domain.ErrorCodeSession, err)
	}

	active := &activeRecording{
		id:         id,
		kind:       kind,
		log:        log,
		stream:     stream,
		session:    session,
		cancel:     cancel,
		audioDone:  make(chan struct{}),
		eventsDone: make(chan struct{}),
	}
	r.current = active
	r.state = kind

	r.sink.ResetBody()
	r.sink.SetRecording(kind)

	go func() {
		defer close(active.audioDone)
		if err := pumpAudio(recCtx, stream.Audio(), session, r.cfg.FrameSamples, r.cfg.SampleRate); err != nil {
			go r.abort(active, err)
		}
	}()
	go func() {
		defer close(active.eventsDone)
		consumeTranscripts(session.Transcripts(), r.sink)
		go r.abort(active, session.Err())
	}()

	log.Info("recording started")
	r.events.RecordingStateChanged(kind, domain.RecordingReasonStarted)
	return nil
}

// Stop tears the active recording down. Without one it does nothing. Every
// release step runs even when an earlier one fails; their errors are joined
// into one session error.
func (r *Recorder) Stop() error {
	active := r.claim(nil)
	if active == nil {
		return nil
	}

	if err := r.release(active); err != nil {
		active.log.WithError(err).Warn("recording stopped with errors")
		r.events.ReportError(domain.ErrorCodeSession, err.Error())
		r.finish(domain.RecordingReasonStopped)
		return domain.NewError(domain.ErrorCodeSession, err)
	}
	active.log.Info("recording stopped")
	r.finish(domain.RecordingReasonStopped)
	return nil
}

// claim detaches the active recording so exactly one caller tears it down.
// A non-nil want only matches that recording.
func (r *Recorder) claim(want *activeRecording) *activeRecording {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := r.current
	if active == nil || (want != nil && active != want) {
		return nil
	}
	r.current = nil
	return active
}

// abort handles a recording that ended without Stop: the session failed or
// closed, or capture died. It is a no-op when Stop already claimed it.
func (r *Recorder) abort(target *activeRecording, cause error) {
	active := r.claim(target)
	if active == nil {
		return
	}

	reason := domain.RecordingReasonSessionClosed
	message := msgSessionClosed
	detail := "live session closed"
	if cause != nil {
		reason = domain.RecordingReasonSessionFailed
		message = msgSessionError
		detail = cause.Error()
		active.log.WithError(cause).Error("recording session failed")
	} else {
		active.log.Warn("live session closed unexpectedly")
	}

	r.sink.Fail(message)
	r.events.ReportError(domain.ErrorCodeSession, detail)

	if err := r.release(active); err != nil {
		active.log.WithError(err).Warn("teardown after session end had errors")
	}
	r.finish(reason)
}

func (r *Recorder) release(active *activeRecording) error {
	var errs []error

	if err := active.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop media tracks: %w", err))
	}

	active.cancel()
	<-active.audioDone

	if err := active.session.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close live session: %w", err))
	}
	<-active.eventsDone

	return errors.Join(errs...)
}

func (r *Recorder) finish(reason domain.RecordingReason) {
	r.mu.Lock()
	r.state = domain.RecordingNone
	r.mu.Unlock()

	r.sink.SetRecording(domain.RecordingNone)
	r.events.RecordingStateChanged(domain.RecordingNone, reason)
}
