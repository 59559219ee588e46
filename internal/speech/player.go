package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

const pollInterval = 10 * time.Millisecond

// OtoPlayer plays 16-bit mono PCM on the default output device. Only one
// oto context may exist per process, so a single OtoPlayer is shared.
type OtoPlayer struct {
	context *oto.Context
	volume  float64
}

func NewOtoPlayer(sampleRate int, volume float64) (*OtoPlayer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if volume < 0 || volume > 1 {
		return nil, fmt.Errorf("volume must be within [0, 1], got %g", volume)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &OtoPlayer{context: ctx, volume: volume}, nil
}

// Play blocks until pcm has been played to completion or ctx ends.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}

	// The reader must own its bytes for the whole playback.
	data := make([]byte, len(pcm))
	copy(data, pcm)

	player := p.context.NewPlayer(bytes.NewReader(data))
	defer player.Close()
	player.SetVolume(p.volume)
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}

// Discard stands in for the audio device on hosts without one.
type Discard struct{}

func (Discard) Play(ctx context.Context, pcm []byte) error { return nil }
