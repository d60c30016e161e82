package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"caseintake/internal/domain"
	"caseintake/internal/ports"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeDevices struct {
	mu       sync.Mutex
	streams  []*fakeMediaStream
	err      error
	requests []ports.MediaRequest
}

func (f *fakeDevices) Open(_ context.Context, req ports.MediaRequest) (ports.MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	index := len(f.requests) - 1
	if index >= len(f.streams) {
		return nil, errors.New("no media stream configured")
	}
	stream := f.streams[index]
	if req.Video {
		stream.tracks.Store(2)
	} else {
		stream.tracks.Store(1)
	}
	return stream, nil
}

func (f *fakeDevices) snapshotRequests() []ports.MediaRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.MediaRequest(nil), f.requests...)
}

type fakeMediaStream struct {
	reader  *io.PipeReader
	writer  *io.PipeWriter
	tracks  atomic.Int32
	stopErr error

	stopOnce  sync.Once
	stopCalls atomic.Int32
}

func newFakeMediaStream() *fakeMediaStream {
	reader, writer := io.Pipe()
	return &fakeMediaStream{reader: reader, writer: writer}
}

func (f *fakeMediaStream) Audio() io.Reader { return f.reader }

func (f *fakeMediaStream) ActiveTracks() int { return int(f.tracks.Load()) }

func (f *fakeMediaStream) Stop() error {
	f.stopCalls.Add(1)
	f.stopOnce.Do(func() {
		f.tracks.Store(0)
		_ = f.writer.Close()
	})
	return f.stopErr
}

type fakeProvider struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
	configs  []ports.SessionConfig
}

func (f *fakeProvider) Connect(_ context.Context, cfg ports.SessionConfig) (ports.TranscriptionSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	index := len(f.configs) - 1
	if index >= len(f.sessions) {
		return nil, errors.New("no session configured")
	}
	return f.sessions[index], nil
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.configs)
}

type fakeSession struct {
	transcripts chan string
	// gate, when set, holds SendMedia until it is closed.
	gate     chan struct{}
	closeErr error

	mu     sync.Mutex
	chunks []domain.MediaChunk
	err    error
	ended  bool
	closes int
}

func newFakeSession() *fakeSession {
	return &fakeSession{transcripts: make(chan string, 16)}
}

func (f *fakeSession) SendMedia(ctx context.Context, chunk domain.MediaChunk) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ended {
		return errors.New("session closed")
	}
	f.chunks = append(f.chunks, chunk)
	return nil
}

func (f *fakeSession) Transcripts() <-chan string { return f.transcripts }

func (f *fakeSession) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.endLocked(nil)
	return f.closeErr
}

// end simulates the server ending the session.
func (f *fakeSession) end(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endLocked(err)
}

func (f *fakeSession) endLocked(err error) {
	if f.ended {
		return
	}
	f.ended = true
	f.err = err
	close(f.transcripts)
}

func (f *fakeSession) snapshotChunks() []domain.MediaChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.MediaChunk(nil), f.chunks...)
}

func (f *fakeSession) closeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	report  domain.AnalyzedReportData
	err     error
	calls   int
	release chan struct{}
	started chan struct{}
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, _, _, _ string) (domain.AnalyzedReportData, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return domain.AnalyzedReportData{}, ctx.Err()
		}
	}
	return f.report, f.err
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeDeliverer struct {
	mu     sync.Mutex
	result domain.DeliveryResult
	err    error
	sent   []domain.AnalyzedReportData
}

func (f *fakeDeliverer) Send(_ context.Context, report domain.AnalyzedReportData) (domain.DeliveryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, report)
	if f.err != nil {
		return domain.DeliveryResult{}, f.err
	}
	return f.result, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states []stateEvent
	drafts []domain.ReportDraft
	forms  []domain.FormState
	errors []errEvent
}

type stateEvent struct {
	state  domain.RecordingState
	reason domain.RecordingReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) RecordingStateChanged(state domain.RecordingState, reason domain.RecordingReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) DraftChanged(draft domain.ReportDraft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
}

func (f *fakeEventSink) FormChanged(state domain.FormState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms = append(f.forms, state)
}

func (f *fakeEventSink) ReportError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stateEvent(nil), f.states...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) lastState() stateEvent {
	states := f.snapshotStates()
	if len(states) == 0 {
		return stateEvent{}
	}
	return states[len(states)-1]
}
