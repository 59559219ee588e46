package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"robo-backend/internal/models"
	"robo-backend/internal/worker"
)

var sayTimeout time.Duration

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Speak text through the local TTS engine and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSay,
}

func init() {
	sayCmd.Flags().DurationVar(&sayTimeout, "timeout", time.Minute, "maximum time to wait for playback")
}

// playbackWaiter reports the outcome of the first utterance.
type playbackWaiter struct {
	done chan error
}

func (w *playbackWaiter) Publish(event models.Event) {
	var err error
	switch event.Type {
	case models.EventSpeechFinished:
	case models.EventSpeechFailed:
		err = errors.New("speech failed")
		if p, ok := event.Payload.(models.SpeechEvent); ok && p.Error != "" {
			err = errors.New(p.Error)
		}
	default:
		return
	}
	select {
	case w.done <- err:
	default:
	}
}

func runSay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return errors.New("nothing to say")
	}

	synth, player := newSpeechOutput(cfg)
	waiter := &playbackWaiter{done: make(chan error, 1)}
	queue := worker.NewSpeechQueue(synth, player, waiter)
	queue.Start()
	queue.Enqueue(text)

	ctx, cancel := context.WithTimeout(context.Background(), sayTimeout)
	defer cancel()

	select {
	case err = <-waiter.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if stopErr := queue.Stop(stopCtx); stopErr != nil {
		log.Warn("Speech worker did not stop in time", "err", stopErr)
	}
	return err
}
