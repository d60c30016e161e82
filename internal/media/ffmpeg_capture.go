package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"caseintake/internal/ports"
)

// Config selects the ffmpeg binary and capture devices.
type Config struct {
	Command          string
	InputFormat      string
	InputDevice      string
	VideoInputFormat string
	VideoInputDevice string
	SampleRate       int
	// RecordingsDir receives the camera recording of video captures.
	RecordingsDir string
}

// FFMPEGDevices opens microphone (and camera) captures through ffmpeg.
// Audio is delivered on stdout as mono f32le at SampleRate.
type FFMPEGDevices struct {
	cfg Config
}

func NewFFMPEGDevices(cfg Config) *FFMPEGDevices {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.VideoInputFormat == "" {
		cfg.VideoInputFormat = "v4l2"
	}
	if cfg.VideoInputDevice == "" {
		cfg.VideoInputDevice = "/dev/video0"
	}
	if cfg.RecordingsDir == "" {
		cfg.RecordingsDir = os.TempDir()
	}
	return &FFMPEGDevices{cfg: cfg}
}

func (d *FFMPEGDevices) Open(ctx context.Context, req ports.MediaRequest) (ports.MediaStream, error) {
	if !req.Audio {
		return nil, errors.New("audio track is required")
	}

	var videoPath string
	tracks := 1
	if req.Video {
		if err := os.MkdirAll(d.cfg.RecordingsDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create recordings directory: %w", err)
		}
		name := req.ID
		if name == "" {
			name = time.Now().Format("20060102-150405")
		}
		videoPath = filepath.Join(d.cfg.RecordingsDir, name+".mkv")
		tracks = 2
	}

	cmd := exec.CommandContext(ctx, d.cfg.Command, buildArgs(d.cfg, videoPath)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// A device that cannot be opened makes ffmpeg exit right away.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-time.After(250 * time.Millisecond):
	}

	s := &ffmpegStream{
		stdout:    stdout,
		stderr:    &stderr,
		process:   cmd.Process,
		waitErr:   waitErr,
		videoPath: videoPath,
	}
	s.tracks.Store(int32(tracks))
	return s, nil
}

// buildArgs maps the microphone to stdout and, when videoPath is set, the
// camera plus microphone to a Matroska file.
func buildArgs(cfg Config, videoPath string) []string {
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
	}
	if videoPath != "" {
		args = append(args,
			"-f", cfg.VideoInputFormat,
			"-i", cfg.VideoInputDevice,
			"-map", "1:v",
			"-map", "0:a",
			"-c:v", "libx264",
			"-preset", "veryfast",
			"-c:a", "aac",
			"-y", videoPath,
		)
	}
	return append(args,
		"-map", "0:a",
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "f32le",
		"-",
	)
}

type ffmpegStream struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	videoPath string
	tracks    atomic.Int32

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) Audio() io.Reader {
	return s.stdout
}

func (s *ffmpegStream) ActiveTracks() int {
	return int(s.tracks.Load())
}

// VideoPath is where the camera track is being written, empty for audio.
func (s *ffmpegStream) VideoPath() string {
	return s.videoPath
}

func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		defer s.tracks.Store(0)

		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})

	return s.stopErr
}

// An interrupted ffmpeg exits non-zero; that is the normal way to stop it.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
