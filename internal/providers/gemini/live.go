package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"caseintake/internal/domain"
	"caseintake/internal/ports"
)

const (
	defaultAPIBaseURL = "https://generativelanguage.googleapis.com"
	livePath          = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

var errSessionClosed = errors.New("live session closed")

// LiveConfig controls Gemini Live websocket settings.
type LiveConfig struct {
	APIKey     string
	APIBaseURL string
	// QueueSize bounds the media chunks buffered while the handshake runs.
	QueueSize int
}

// LiveProvider implements ports.TranscriptionProvider for the Gemini Live API.
type LiveProvider struct {
	cfg    LiveConfig
	dialer *websocket.Dialer
}

func NewLiveProvider(cfg LiveConfig) *LiveProvider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &LiveProvider{cfg: cfg, dialer: websocket.DefaultDialer}
}

// Connect returns at once; dialing and the setup handshake run in the
// background while SendMedia queues payloads.
func (p *LiveProvider) Connect(ctx context.Context, cfg ports.SessionConfig) (ports.TranscriptionSession, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, errors.New("Gemini API key is not configured")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("live model is not configured")
	}

	wsURL, err := buildLiveURL(p.cfg.APIBaseURL, p.cfg.APIKey)
	if err != nil {
		return nil, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	s := &liveSession{
		ctx:         sessionCtx,
		cancel:      cancel,
		transcripts: make(chan string, 64),
		media:       make(chan domain.MediaChunk, p.cfg.QueueSize),
		ready:       make(chan struct{}),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.run(p.dialer, wsURL, newSetupMessage(cfg))
	return s, nil
}

type liveSession struct {
	ctx    context.Context
	cancel context.CancelFunc

	transcripts chan string
	media       chan domain.MediaChunk
	ready       chan struct{}
	closing     chan struct{}
	done        chan struct{}

	connMu sync.Mutex
	conn   *websocket.Conn

	errMu sync.Mutex
	err   error

	readyOnce sync.Once
	closeOnce sync.Once
}

func (s *liveSession) SendMedia(ctx context.Context, chunk domain.MediaChunk) error {
	if chunk.Data == "" {
		return nil
	}
	if s.ctx.Err() != nil {
		if err := s.Err(); err != nil {
			return err
		}
		return errSessionClosed
	}
	select {
	case s.media <- chunk:
		return nil
	case <-s.ctx.Done():
		if err := s.Err(); err != nil {
			return err
		}
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *liveSession) Transcripts() <-chan string {
	return s.transcripts
}

// Ready is closed once the server has acknowledged the setup message.
func (s *liveSession) Ready() <-chan struct{} {
	return s.ready
}

func (s *liveSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *liveSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.cancel()
		s.connMu.Lock()
		if s.conn != nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), closeDeadline())
			_ = s.conn.Close()
		}
		s.connMu.Unlock()
	})
	<-s.done
	return s.Err()
}

func (s *liveSession) setErr(err error) {
	if err == nil {
		return
	}
	select {
	case <-s.closing:
		return
	default:
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway {
			return
		}
		if closeErr.Text != "" {
			err = fmt.Errorf("live session closed by server: %s", closeErr.Text)
		}
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *liveSession) run(dialer *websocket.Dialer, wsURL string, setup liveSetupMessage) {
	defer close(s.done)
	defer close(s.transcripts)
	defer s.cancel()

	conn, _, err := dialer.DialContext(s.ctx, wsURL, nil)
	if err != nil {
		if s.ctx.Err() == nil {
			s.setErr(fmt.Errorf("failed to connect to Gemini Live: %w", err))
		}
		return
	}

	s.connMu.Lock()
	select {
	case <-s.closing:
		s.connMu.Unlock()
		_ = conn.Close()
		return
	default:
	}
	s.conn = conn
	s.connMu.Unlock()
	defer conn.Close()

	if err := conn.WriteJSON(setup); err != nil {
		if s.ctx.Err() == nil {
			s.setErr(fmt.Errorf("failed to send session setup: %w", err))
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer s.cancel()
		s.readLoop(conn)
	}()
	go func() {
		defer wg.Done()
		s.writeLoop(conn)
	}()
	wg.Wait()
}

// writeLoop holds queued media until the handshake completes, then drains
// the queue in order.
func (s *liveSession) writeLoop(conn *websocket.Conn) {
	select {
	case <-s.ready:
	case <-s.ctx.Done():
		return
	}

	for {
		select {
		case chunk := <-s.media:
			msg := liveRealtimeInputMessage{RealtimeInput: liveRealtimeInput{MediaChunks: []domain.MediaChunk{chunk}}}
			if err := conn.WriteJSON(msg); err != nil {
				s.setErr(fmt.Errorf("failed to send audio: %w", err))
				s.cancel()
				_ = conn.Close()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *liveSession) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			// A cancelled context means the owner is shutting the session down.
			if s.ctx.Err() == nil {
				s.setErr(fmt.Errorf("failed to read live event: %w", err))
			}
			return
		}

		var msg liveServerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			continue
		}

		if msg.Error != nil {
			message := strings.TrimSpace(msg.Error.Message)
			if message == "" {
				message = "Gemini Live returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}
		if msg.SetupComplete != nil {
			s.readyOnce.Do(func() { close(s.ready) })
		}
		if text := msg.inputTranscript(); text != "" {
			select {
			case s.transcripts <- text:
			case <-s.closing:
				return
			}
		}
	}
}

type liveSetupMessage struct {
	Setup liveSetup `json:"setup"`
}

type liveSetup struct {
	Model                   string                `json:"model"`
	GenerationConfig        *liveGenerationConfig `json:"generationConfig,omitempty"`
	InputAudioTranscription *struct{}             `json:"inputAudioTranscription,omitempty"`
}

type liveGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type liveRealtimeInputMessage struct {
	RealtimeInput liveRealtimeInput `json:"realtimeInput"`
}

type liveRealtimeInput struct {
	MediaChunks []domain.MediaChunk `json:"mediaChunks"`
}

type liveServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete,omitempty"`
	ServerContent *struct {
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription,omitempty"`
	} `json:"serverContent,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (m liveServerMessage) inputTranscript() string {
	if m.ServerContent == nil || m.ServerContent.InputTranscription == nil {
		return ""
	}
	return m.ServerContent.InputTranscription.Text
}

func newSetupMessage(cfg ports.SessionConfig) liveSetupMessage {
	model := cfg.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	setup := liveSetup{
		Model:            model,
		GenerationConfig: &liveGenerationConfig{ResponseModalities: []string{"AUDIO"}},
	}
	if cfg.InputTranscription {
		setup.InputAudioTranscription = &struct{}{}
	}
	return liveSetupMessage{Setup: setup}
}

func closeDeadline() time.Time {
	return time.Now().Add(time.Second)
}

func buildLiveURL(base string, apiKey string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = defaultAPIBaseURL
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	liveURL, err := url.Parse(base + livePath)
	if err != nil {
		return "", fmt.Errorf("invalid Gemini API base URL: %w", err)
	}
	query := liveURL.Query()
	query.Set("key", apiKey)
	liveURL.RawQuery = query.Encode()
	return liveURL.String(), nil
}
