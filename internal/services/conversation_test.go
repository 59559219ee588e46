package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSession records the turns it has seen, like a remote chat history.
type fakeSession struct {
	mu      sync.Mutex
	history []string
	err     error
	reply   func(history []string, message string) string
}

func (s *fakeSession) SendMessage(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	reply := "reply to " + message
	if s.reply != nil {
		reply = s.reply(s.history, message)
	}
	s.history = append(s.history, message)
	return reply, nil
}

type fakeStarter struct {
	started  int
	sessions []*fakeSession
	newFn    func() *fakeSession
	err      error
}

func (f *fakeStarter) StartSession() (ChatSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started++
	s := &fakeSession{}
	if f.newFn != nil {
		s = f.newFn()
	}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func TestConversationManager_EmptyMessage(t *testing.T) {
	starter := &fakeStarter{}
	m := NewConversationManager(starter, time.Second)

	for _, msg := range []string{"", "   ", "\n\t"} {
		_, err := m.Send(context.Background(), msg)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("Expected ValidationError for %q, got %v", msg, err)
		}
		if vErr.Message != "Empty message" {
			t.Errorf("Expected 'Empty message', got %q", vErr.Message)
		}
	}
	if starter.started != 0 {
		t.Errorf("validation must happen before any session is created")
	}
}

func TestConversationManager_NotConfigured(t *testing.T) {
	m := NewConversationManager(nil, time.Second)

	_, err := m.Send(context.Background(), "hello")
	var cErr *ConfigurationError
	if !errors.As(err, &cErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
	if m.Configured() {
		t.Error("Expected Configured() to be false")
	}
}

func TestConversationManager_LazySessionContinuity(t *testing.T) {
	starter := &fakeStarter{}
	m := NewConversationManager(starter, time.Second)

	if m.HasSession() {
		t.Fatal("session should not exist before first Send")
	}

	reply, err := m.Send(context.Background(), "  hello ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "reply to hello" {
		t.Errorf("Expected trimmed message to be sent, got reply %q", reply)
	}
	if _, err := m.Send(context.Background(), "how are you"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if starter.started != 1 {
		t.Fatalf("Expected one session, got %d", starter.started)
	}
	if got := strings.Join(starter.sessions[0].history, "|"); got != "hello|how are you" {
		t.Errorf("Expected both turns in one session, got %q", got)
	}
}

func TestConversationManager_ResetStartsFreshContext(t *testing.T) {
	starter := &fakeStarter{}
	m := NewConversationManager(starter, time.Second)

	m.Send(context.Background(), "first")
	m.Reset()
	if m.HasSession() {
		t.Fatal("Reset must drop the session")
	}
	m.Reset()
	if m.HasSession() {
		t.Fatal("second Reset must leave no session")
	}

	m.Send(context.Background(), "second")
	if starter.started != 2 {
		t.Fatalf("Expected a new session after reset, got %d", starter.started)
	}
	if len(starter.sessions[1].history) != 1 {
		t.Errorf("Expected fresh session with no prior turns, got %v", starter.sessions[1].history)
	}
}

func TestConversationManager_RemoteErrorKeepsSession(t *testing.T) {
	session := &fakeSession{err: errors.New("quota exceeded")}
	starter := &fakeStarter{newFn: func() *fakeSession { return session }}
	m := NewConversationManager(starter, time.Second)

	_, err := m.Send(context.Background(), "hello")
	var rErr *RemoteServiceError
	if !errors.As(err, &rErr) {
		t.Fatalf("Expected RemoteServiceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Expected underlying message to surface, got %q", err.Error())
	}
	if !m.HasSession() {
		t.Error("session must survive a remote failure")
	}

	session.err = nil
	if _, err := m.Send(context.Background(), "again"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if starter.started != 1 {
		t.Errorf("Expected retry against the same session, got %d sessions", starter.started)
	}
}

func TestConversationManager_StartFailure(t *testing.T) {
	m := NewConversationManager(&fakeStarter{err: errors.New("dial failed")}, time.Second)

	_, err := m.Send(context.Background(), "hello")
	var rErr *RemoteServiceError
	if !errors.As(err, &rErr) {
		t.Fatalf("Expected RemoteServiceError, got %v", err)
	}
	if m.HasSession() {
		t.Error("no session should be stored after a failed start")
	}
}

func TestConversationManager_EmptyReplyIsError(t *testing.T) {
	starter := &fakeStarter{newFn: func() *fakeSession {
		return &fakeSession{reply: func([]string, string) string { return "   " }}
	}}
	m := NewConversationManager(starter, time.Second)

	if _, err := m.Send(context.Background(), "hello"); err == nil {
		t.Fatal("Expected error for empty reply")
	}
}

func TestConversationManager_IgnoresCallerCancellation(t *testing.T) {
	m := NewConversationManager(&fakeStarter{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reply, err := m.Send(ctx, "hello")
	if err != nil {
		t.Fatalf("cancelled caller context must not abort the call: %v", err)
	}
	if reply == "" {
		t.Error("Expected a reply")
	}
}

type blockingSession struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (s *blockingSession) SendMessage(ctx context.Context, message string) (string, error) {
	if s.active.Add(1) > 1 {
		s.overlap.Store(true)
	}
	time.Sleep(5 * time.Millisecond)
	s.active.Add(-1)
	return "ok", nil
}

type singleStarter struct{ s ChatSession }

func (f singleStarter) StartSession() (ChatSession, error) { return f.s, nil }

func TestConversationManager_SerializesSends(t *testing.T) {
	session := &blockingSession{}
	m := NewConversationManager(singleStarter{s: session}, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Send(context.Background(), "hi")
		}()
	}
	wg.Wait()

	if session.overlap.Load() {
		t.Error("concurrent Send calls must never interleave")
	}
}
