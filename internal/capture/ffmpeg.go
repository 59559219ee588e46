package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

const micSampleRateHz = 16000

// FFmpegRecorder captures the default system microphone by running ffmpeg
// and reading raw PCM from its stdout.
type FFmpegRecorder struct {
	path   string
	listen ListenConfig
}

// NewFFmpegRecorder resolves the ffmpeg binary and fails when it is missing
// or the platform has no known capture device.
func NewFFmpegRecorder(path string, energyThreshold float64, dynamicEnergy bool) (*FFmpegRecorder, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg is required for microphone capture (install ffmpeg and ensure it is in PATH): %w", err)
	}
	if _, err := micFFmpegArgs(runtime.GOOS); err != nil {
		return nil, err
	}

	cfg := DefaultListenConfig(micSampleRateHz)
	if energyThreshold > 0 {
		cfg.EnergyThreshold = energyThreshold
	}
	cfg.DynamicEnergy = dynamicEnergy

	return &FFmpegRecorder{path: resolved, listen: cfg}, nil
}

func micFFmpegArgs(goos string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "avfoundation", "-i", ":0",
			"-ac", "1", "-ar", fmt.Sprintf("%d", micSampleRateHz),
			"-f", "s16le", "-",
		}, nil
	case "linux":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", "default",
			"-ac", "1", "-ar", fmt.Sprintf("%d", micSampleRateHz),
			"-f", "s16le", "-",
		}, nil
	case "windows":
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "dshow", "-i", "audio=default",
			"-ac", "1", "-ar", fmt.Sprintf("%d", micSampleRateHz),
			"-f", "s16le", "-",
		}, nil
	default:
		return nil, fmt.Errorf("microphone capture is not implemented for %s; supported platforms: darwin, linux, windows", goos)
	}
}

// Record implements Recorder. ffmpeg is killed as soon as the utterance is
// complete or ctx expires.
func (f *FFmpegRecorder) Record(ctx context.Context, timeout, phraseLimit time.Duration) ([]byte, error) {
	args, err := micFFmpegArgs(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, f.path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open ffmpeg stdout: %w", err)
	}
	stderr := &limitedBuffer{limit: 4096}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg mic capture: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		_ = cmd.Wait()
	}()

	pcm, err := Listen(stdout, f.listen, timeout, phraseLimit)
	if err != nil {
		if errors.Is(err, errStreamEnded) {
			if ctx.Err() != nil {
				return nil, ErrNoSpeech
			}
			return nil, fmt.Errorf("microphone stream ended: %s", strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return EncodeWAV(pcm, micSampleRateHz, 1)
}

type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
