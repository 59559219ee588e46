package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"
)

// ListenConfig tunes the energy-based speech detector.
type ListenConfig struct {
	SampleRate      int
	ChunkSamples    int
	EnergyThreshold float64
	DynamicEnergy   bool
	DynamicDamping  float64
	DynamicRatio    float64
	Calibration     time.Duration
	PauseThreshold  time.Duration
	MinPhrase       time.Duration
	NonSpeaking     time.Duration
}

func DefaultListenConfig(sampleRate int) ListenConfig {
	return ListenConfig{
		SampleRate:      sampleRate,
		ChunkSamples:    1024,
		EnergyThreshold: 300,
		DynamicEnergy:   true,
		DynamicDamping:  0.15,
		DynamicRatio:    1.5,
		Calibration:     500 * time.Millisecond,
		PauseThreshold:  800 * time.Millisecond,
		MinPhrase:       300 * time.Millisecond,
		NonSpeaking:     500 * time.Millisecond,
	}
}

var errStreamEnded = errors.New("audio stream ended")

// Listen reads mono 16-bit little-endian PCM from r. It calibrates the
// energy threshold against ambient noise, waits up to timeout for speech to
// begin and records until a trailing pause or phraseLimit. Durations are
// measured in audio time, not wall time. A zero timeout or phraseLimit
// means no limit.
func Listen(r io.Reader, cfg ListenConfig, timeout, phraseLimit time.Duration) ([]byte, error) {
	if cfg.SampleRate <= 0 || cfg.ChunkSamples <= 0 {
		return nil, fmt.Errorf("invalid listen config: sample rate %d, chunk %d", cfg.SampleRate, cfg.ChunkSamples)
	}
	l := &listener{
		cfg:       cfg,
		r:         r,
		threshold: cfg.EnergyThreshold,
		buf:       make([]byte, cfg.ChunkSamples*2),
		spc:       float64(cfg.ChunkSamples) / float64(cfg.SampleRate),
	}
	if err := l.calibrate(); err != nil {
		return nil, err
	}
	return l.listen(timeout.Seconds(), phraseLimit.Seconds())
}

type listener struct {
	cfg       ListenConfig
	r         io.Reader
	threshold float64
	buf       []byte
	spc       float64 // seconds per chunk
}

func (l *listener) chunks(d time.Duration) int {
	return int(math.Ceil(d.Seconds() / l.spc))
}

// read returns the next chunk; a short final chunk is returned with a nil
// error and the following call reports io.EOF.
func (l *listener) read() ([]byte, error) {
	n, err := io.ReadFull(l.r, l.buf)
	if errors.Is(err, io.ErrUnexpectedEOF) && n >= 2 {
		err = nil
	}
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		return nil, err
	}
	chunk := make([]byte, n&^1)
	copy(chunk, l.buf)
	return chunk, nil
}

func (l *listener) adjust(energy float64) {
	damping := math.Pow(l.cfg.DynamicDamping, l.spc)
	target := energy * l.cfg.DynamicRatio
	l.threshold = l.threshold*damping + target*(1-damping)
}

func (l *listener) calibrate() error {
	elapsed := 0.0
	for {
		elapsed += l.spc
		if elapsed > l.cfg.Calibration.Seconds() {
			return nil
		}
		chunk, err := l.read()
		if err != nil {
			return streamErr(err)
		}
		l.adjust(rms(chunk))
	}
}

func (l *listener) listen(timeout, phraseLimit float64) ([]byte, error) {
	pauseChunks := l.chunks(l.cfg.PauseThreshold)
	minPhraseChunks := l.chunks(l.cfg.MinPhrase)
	nonSpeakingChunks := l.chunks(l.cfg.NonSpeaking)

	var frames [][]byte
	elapsed := 0.0
	for {
		// Wait for the energy to cross the threshold, keeping a short
		// prefix so the start of the first word is not clipped.
		for {
			elapsed += l.spc
			if timeout > 0 && elapsed > timeout {
				return nil, ErrNoSpeech
			}
			chunk, err := l.read()
			if err != nil {
				return nil, streamErr(err)
			}
			frames = append(frames, chunk)
			if len(frames) > nonSpeakingChunks {
				frames = frames[len(frames)-nonSpeakingChunks:]
			}
			energy := rms(chunk)
			if energy > l.threshold {
				break
			}
			if l.cfg.DynamicEnergy {
				l.adjust(energy)
			}
		}

		phraseStart := elapsed
		phraseCount, pauseCount := 1, 0
		ended := false
		for {
			elapsed += l.spc
			if phraseLimit > 0 && elapsed-phraseStart > phraseLimit {
				break
			}
			chunk, err := l.read()
			if errors.Is(err, io.EOF) {
				ended = true
				break
			}
			if err != nil {
				return nil, err
			}
			frames = append(frames, chunk)
			phraseCount++
			if rms(chunk) > l.threshold {
				pauseCount = 0
			} else {
				pauseCount++
			}
			if pauseCount > pauseChunks {
				break
			}
		}

		phraseCount -= pauseCount
		if phraseCount >= minPhraseChunks || ended {
			// Drop trailing silence beyond the non-speaking margin.
			if trim := pauseCount - nonSpeakingChunks; trim > 0 && trim < len(frames) {
				frames = frames[:len(frames)-trim]
			}
			return joinFrames(frames), nil
		}
		if len(frames) > nonSpeakingChunks {
			frames = frames[len(frames)-nonSpeakingChunks:]
		}
	}
}

func streamErr(err error) error {
	if errors.Is(err, io.EOF) {
		return errStreamEnded
	}
	return err
}

func joinFrames(frames [][]byte) []byte {
	size := 0
	for _, f := range frames {
		size += len(f)
	}
	out := make([]byte, 0, size)
	for _, f := range frames {
		out = append(out, f...)
	}
	return out
}

// rms returns the root-mean-square amplitude of 16-bit LE samples.
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
