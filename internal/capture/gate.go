package capture

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"robo-backend/internal/models"
)

// Recorder captures one utterance from the microphone and returns it as WAV.
type Recorder interface {
	Record(ctx context.Context, timeout, phraseLimit time.Duration) ([]byte, error)
}

// Transcriber turns captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

type Notifier interface {
	Publish(event models.Event)
}

// Result of one capture attempt. Text is empty whenever Err is set.
type Result struct {
	Text string
	Err  error
}

const (
	transcribeTimeout = 30 * time.Second
	recordSlack       = 5 * time.Second
)

// Gate lets at most one capture run at a time. Competing callers are
// rejected immediately with ErrBusy instead of waiting.
type Gate struct {
	mu          sync.Mutex
	recorder    Recorder
	transcriber Transcriber
	notifier    Notifier
}

// NewGate accepts nil collaborators; the gate then reports ErrUnavailable.
func NewGate(recorder Recorder, transcriber Transcriber, notifier Notifier) *Gate {
	return &Gate{
		recorder:    recorder,
		transcriber: transcriber,
		notifier:    notifier,
	}
}

func (g *Gate) Available() bool {
	return g.recorder != nil && g.transcriber != nil
}

// TryCapture listens for up to timeout for speech to begin and up to
// phraseLimit for the utterance, then transcribes it. The gate is released
// on every return path. Caller cancellation is ignored; the capture ends on
// its own timeouts.
func (g *Gate) TryCapture(ctx context.Context, timeout, phraseLimit time.Duration) Result {
	if !g.Available() {
		return Result{Err: ErrUnavailable}
	}
	if !g.mu.TryLock() {
		return Result{Err: ErrBusy}
	}
	defer g.mu.Unlock()

	g.publish(models.EventCaptureStarted, models.CaptureEvent{})
	res := g.capture(context.WithoutCancel(ctx), timeout, phraseLimit)
	g.publish(models.EventCaptureFinished, models.CaptureEvent{Text: res.Text, Error: UserMessage(res.Err)})
	return res
}

func (g *Gate) capture(ctx context.Context, timeout, phraseLimit time.Duration) Result {
	recordCtx, cancel := context.WithTimeout(ctx, timeout+phraseLimit+recordSlack)
	defer cancel()

	log.Info("Listening", "timeout", timeout, "phrase_limit", phraseLimit)
	audio, err := g.recorder.Record(recordCtx, timeout, phraseLimit)
	if err != nil {
		log.Warn("Capture failed", "err", err)
		return Result{Err: err}
	}

	transcribeCtx, cancelTranscribe := context.WithTimeout(ctx, transcribeTimeout)
	defer cancelTranscribe()

	text, err := g.transcriber.Transcribe(transcribeCtx, audio, "audio/wav")
	if err != nil {
		log.Warn("Transcription failed", "err", err)
		return Result{Err: err}
	}
	if text == "" {
		return Result{Err: ErrUnintelligible}
	}

	log.Info("Heard", "text", text)
	return Result{Text: text}
}

func (g *Gate) publish(eventType string, payload models.CaptureEvent) {
	if g.notifier == nil {
		return
	}
	g.notifier.Publish(models.NewEvent(eventType, payload))
}
