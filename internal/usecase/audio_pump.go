package usecase

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"caseintake/internal/domain"
	"caseintake/internal/ports"
)

var errCaptureEnded = errors.New("audio capture ended")

// pumpAudio streams fixed-size frames of float32 samples to the session as
// 16-bit PCM. It returns a non-nil error only when capture itself fails.
// Send failures end the pump quietly; the session reports its own end
// through its transcript channel.
func pumpAudio(
	ctx context.Context,
	audio io.Reader,
	session ports.TranscriptionSession,
	frameSamples int,
	sampleRate int,
) error {
	if frameSamples < 256 {
		frameSamples = 4096
	}
	mimeType := fmt.Sprintf("audio/pcm;rate=%d", sampleRate)

	frame := make([]byte, frameSamples*4)
	for {
		n, err := io.ReadFull(audio, frame)
		if n >= 4 && (err == nil || errors.Is(err, io.ErrUnexpectedEOF)) {
			chunk := domain.MediaChunk{Data: encodePCM16(frame[:n-n%4]), MIMEType: mimeType}
			if sendErr := session.SendMedia(ctx, chunk); sendErr != nil {
				return nil
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return errCaptureEnded
			}
			return fmt.Errorf("audio capture error: %w", err)
		}
	}
}

// encodePCM16 converts little-endian float32 samples to little-endian int16
// PCM and base64-encodes the result.
func encodePCM16(samples []byte) string {
	pcm := make([]byte, len(samples)/2)
	for i := 0; i+4 <= len(samples); i += 4 {
		value := math.Float32frombits(binary.LittleEndian.Uint32(samples[i:]))
		binary.LittleEndian.PutUint16(pcm[i/2:], uint16(floatToInt16(value)))
	}
	return base64.StdEncoding.EncodeToString(pcm)
}

func floatToInt16(sample float32) int16 {
	scaled := float64(sample) * 32768
	switch {
	case scaled != scaled:
		return 0
	case scaled >= math.MaxInt16:
		return math.MaxInt16
	case scaled <= math.MinInt16:
		return math.MinInt16
	default:
		return int16(scaled)
	}
}
