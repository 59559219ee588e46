// Package speech holds the local text-to-speech engine and the audio output
// device used by the speech worker.
package speech

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	maxTextSize      = 5000
	synthesisTimeout = 30 * time.Second
)

// PiperSynthesizer runs the Piper binary once per utterance and returns raw
// 16-bit mono PCM.
type PiperSynthesizer struct {
	binary     string
	modelPath  string
	configPath string
	speaker    string
	speed      float64
	sampleRate int
}

type PiperConfig struct {
	Binary     string // defaults to "piper"
	ModelPath  string
	Speaker    string
	Speed      float64
	SampleRate int
}

func NewPiperSynthesizer(cfg PiperConfig) (*PiperSynthesizer, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("piper model path is required")
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("piper model not found: %w", err)
	}
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	binary, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("piper binary not found: %w", err)
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}

	return &PiperSynthesizer{
		binary:     binary,
		modelPath:  cfg.ModelPath,
		configPath: strings.TrimSuffix(cfg.ModelPath, filepath.Ext(cfg.ModelPath)) + ".onnx.json",
		speaker:    cfg.Speaker,
		speed:      cfg.Speed,
		sampleRate: cfg.SampleRate,
	}, nil
}

func (p *PiperSynthesizer) Name() string { return "piper" }

func (p *PiperSynthesizer) SampleRate() int { return p.sampleRate }

func (p *PiperSynthesizer) args() []string {
	// Speed 2.0 means half the phoneme length.
	args := []string{
		"--model", p.modelPath,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", 1.0/p.speed),
	}
	if _, err := os.Stat(p.configPath); err == nil {
		args = append(args, "--config", p.configPath)
	}
	if p.speaker != "" {
		args = append(args, "--speaker", p.speaker)
	}
	return args
}

// Synthesize converts text to PCM. The text is handed to Piper on stdin
// before the process starts.
func (p *PiperSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}
	if len(text) > maxTextSize {
		return nil, fmt.Errorf("text too long: %d characters (max %d)", len(text), maxTextSize)
	}

	ctx, cancel := context.WithTimeout(ctx, synthesisTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary, p.args()...)
	cmd.Stdin = strings.NewReader(text + "\n")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("synthesis timeout: %w", ctx.Err())
		}
		return nil, fmt.Errorf("piper failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	audio := stdout.Bytes()
	if len(audio) == 0 {
		return nil, fmt.Errorf("piper produced no audio output, stderr: %s", strings.TrimSpace(stderr.String()))
	}
	return audio, nil
}

// Silent is used when no voice model is configured. It produces no audio.
type Silent struct{}

func (Silent) Name() string { return "disabled" }

func (Silent) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return nil, nil
}
