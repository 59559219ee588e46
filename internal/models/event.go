package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to browser clients over the websocket hub.
const (
	EventSpeechStarted     = "speech.started"
	EventSpeechFinished    = "speech.finished"
	EventSpeechFailed      = "speech.failed"
	EventConversationReset = "conversation.reset"
	EventCaptureStarted    = "capture.started"
	EventCaptureFinished   = "capture.finished"
)

type Event struct {
	Type    string      `json:"type"`
	ID      uuid.UUID   `json:"id"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

func NewEvent(eventType string, payload interface{}) Event {
	return Event{
		Type:    eventType,
		ID:      uuid.New(),
		Payload: payload,
		At:      time.Now().UTC(),
	}
}

type SpeechEvent struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

type CaptureEvent struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}
