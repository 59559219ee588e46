package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"robo-backend/internal/models"
)

type stubRecorder struct {
	audio   []byte
	err     error
	started chan struct{}
	release chan struct{}
	calls   int
	mu      sync.Mutex
}

func (s *stubRecorder) Record(ctx context.Context, timeout, phraseLimit time.Duration) ([]byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.started != nil {
		close(s.started)
	}
	if s.release != nil {
		<-s.release
	}
	return s.audio, s.err
}

type stubTranscriber struct {
	text     string
	err      error
	lastMIME string
}

func (s *stubTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	s.lastMIME = mimeType
	return s.text, s.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *recordingNotifier) Publish(event models.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func TestGate_Success(t *testing.T) {
	rec := &stubRecorder{audio: []byte("wav")}
	tr := &stubTranscriber{text: "hello robot"}
	notifier := &recordingNotifier{}
	g := NewGate(rec, tr, notifier)

	res := g.TryCapture(context.Background(), 8*time.Second, 15*time.Second)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Text != "hello robot" {
		t.Errorf("Expected transcript 'hello robot', got %q", res.Text)
	}
	if tr.lastMIME != "audio/wav" {
		t.Errorf("Expected audio/wav, got %q", tr.lastMIME)
	}
	if len(notifier.events) != 2 ||
		notifier.events[0].Type != models.EventCaptureStarted ||
		notifier.events[1].Type != models.EventCaptureFinished {
		t.Errorf("Expected started/finished events, got %+v", notifier.events)
	}
}

func TestGate_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		gate *Gate
	}{
		{"no recorder", NewGate(nil, &stubTranscriber{}, nil)},
		{"no transcriber", NewGate(&stubRecorder{}, nil, nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.gate.TryCapture(context.Background(), time.Second, time.Second)
			if !errors.Is(res.Err, ErrUnavailable) {
				t.Errorf("Expected ErrUnavailable, got %v", res.Err)
			}
			if res.Text != "" {
				t.Errorf("Expected empty text, got %q", res.Text)
			}
		})
	}
}

func TestGate_ConcurrentCaptureRejected(t *testing.T) {
	rec := &stubRecorder{
		audio:   []byte("wav"),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	g := NewGate(rec, &stubTranscriber{text: "first"}, nil)

	done := make(chan Result, 1)
	go func() {
		done <- g.TryCapture(context.Background(), time.Second, time.Second)
	}()
	<-rec.started

	start := time.Now()
	second := g.TryCapture(context.Background(), time.Second, time.Second)
	if time.Since(start) > 100*time.Millisecond {
		t.Errorf("busy capture should return immediately, took %s", time.Since(start))
	}
	if !errors.Is(second.Err, ErrBusy) {
		t.Fatalf("Expected ErrBusy, got %v", second.Err)
	}
	if UserMessage(second.Err) != "Microphone already in use" {
		t.Errorf("unexpected busy message %q", UserMessage(second.Err))
	}
	if second.Text != "" {
		t.Errorf("Expected empty text, got %q", second.Text)
	}

	close(rec.release)
	first := <-done
	if first.Err != nil || first.Text != "first" {
		t.Errorf("Expected first capture to succeed, got %+v", first)
	}
	if rec.calls != 1 {
		t.Errorf("Expected recorder to run once, ran %d times", rec.calls)
	}
}

func TestGate_ReleasesAfterErrors(t *testing.T) {
	tests := []struct {
		name    string
		rec     *stubRecorder
		tr      *stubTranscriber
		wantErr error
	}{
		{"no speech", &stubRecorder{err: ErrNoSpeech}, &stubTranscriber{}, ErrNoSpeech},
		{"unintelligible", &stubRecorder{audio: []byte("x")}, &stubTranscriber{err: ErrUnintelligible}, ErrUnintelligible},
		{"empty transcript", &stubRecorder{audio: []byte("x")}, &stubTranscriber{}, ErrUnintelligible},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGate(tc.rec, tc.tr, nil)
			res := g.TryCapture(context.Background(), time.Second, time.Second)
			if !errors.Is(res.Err, tc.wantErr) {
				t.Fatalf("Expected %v, got %v", tc.wantErr, res.Err)
			}
			if !g.mu.TryLock() {
				t.Fatal("gate should be released after an error")
			}
			g.mu.Unlock()
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrBusy, "Microphone already in use"},
		{ErrUnavailable, "Speech recognition not installed"},
		{ErrNoSpeech, "No speech detected, please try again"},
		{ErrUnintelligible, "Could not understand audio"},
		{&ServiceError{Err: errors.New("quota exceeded")}, "Speech service error: quota exceeded"},
		{errors.New("device gone"), "device gone"},
	}

	for _, tc := range tests {
		if got := UserMessage(tc.err); got != tc.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
