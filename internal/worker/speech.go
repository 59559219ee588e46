package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"robo-backend/internal/models"
)

// Synthesizer turns plain text into PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Player plays PCM to completion.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
}

type Notifier interface {
	Publish(event models.Event)
}

const speakTimeout = 2 * time.Minute

// SpeechQueue feeds a single background worker that speaks one utterance
// at a time. At most one utterance is pending: Enqueue replaces any text
// that has not started yet. The utterance being spoken is never cut off.
type SpeechQueue struct {
	mu       sync.Mutex // serializes drain-then-send in Enqueue
	items    chan string
	synth    Synthesizer
	player   Player
	notifier Notifier

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewSpeechQueue(synth Synthesizer, player Player, notifier Notifier) *SpeechQueue {
	return &SpeechQueue{
		items:    make(chan string, 1),
		synth:    synth,
		player:   player,
		notifier: notifier,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (q *SpeechQueue) Start() {
	go q.run()
	log.Debug("Speech worker started")
}

// Enqueue discards any pending utterance and queues text. It never blocks
// and is a no-op after Stop.
func (q *SpeechQueue) Enqueue(text string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.stopChan:
		log.Debug("Speech queue stopped, dropping text")
		return
	default:
	}

	select {
	case stale := <-q.items:
		log.Debug("Dropped pending speech", "text", stale)
	default:
	}

	select {
	case q.items <- text:
	default:
		// Unreachable: only Enqueue sends, and it holds mu after draining.
		log.Error("Speech queue full after drain")
	}
}

// Pending reports how many utterances are waiting (0 or 1).
func (q *SpeechQueue) Pending() int {
	return len(q.items)
}

// Stop signals the worker to exit after the current utterance and waits
// for it, or for ctx to end. Pending text is discarded.
func (q *SpeechQueue) Stop(ctx context.Context) error {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		close(q.stopChan)
		q.mu.Unlock()
	})

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("speech worker did not stop: %w", ctx.Err())
	}
}

func (q *SpeechQueue) run() {
	defer close(q.done)
	for {
		select {
		case <-q.stopChan:
			log.Debug("Speech worker shutting down")
			return
		case text := <-q.items:
			// Stop wins over an item that raced with it.
			select {
			case <-q.stopChan:
				log.Debug("Speech worker shutting down")
				return
			default:
			}
			q.speak(text)
		}
	}
}

// speak synthesizes and plays one utterance. Failures are logged and
// never retried.
func (q *SpeechQueue) speak(text string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Speech worker recovered from panic", "panic", r)
			q.publish(models.EventSpeechFailed, text, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), speakTimeout)
	defer cancel()

	q.publish(models.EventSpeechStarted, text, nil)

	audio, err := q.synth.Synthesize(ctx, text)
	if err != nil {
		log.Error("TTS synthesis failed", "err", err)
		q.publish(models.EventSpeechFailed, text, err)
		return
	}
	if len(audio) > 0 {
		if err := q.player.Play(ctx, audio); err != nil {
			log.Error("TTS playback failed", "err", err)
			q.publish(models.EventSpeechFailed, text, err)
			return
		}
	}

	q.publish(models.EventSpeechFinished, text, nil)
}

func (q *SpeechQueue) publish(eventType, text string, err error) {
	if q.notifier == nil {
		return
	}
	payload := models.SpeechEvent{Text: text}
	if err != nil {
		payload.Error = err.Error()
	}
	q.notifier.Publish(models.NewEvent(eventType, payload))
}
