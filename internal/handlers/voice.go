package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"robo-backend/internal/capture"
	"robo-backend/internal/models"
)

const (
	defaultSTTTimeout     = 8
	defaultSTTPhraseLimit = 15
	maxSTTTimeout         = 30
	maxSTTPhraseLimit     = 60
)

type conversation interface {
	Send(ctx context.Context, message string) (string, error)
	Reset()
}

type speaker interface {
	Enqueue(text string)
}

type capturer interface {
	TryCapture(ctx context.Context, timeout, phraseLimit time.Duration) capture.Result
}

type notifier interface {
	Publish(event models.Event)
}

// VoiceHandler maps the browser's four actions onto the conversation
// manager, the speech queue and the capture gate.
type VoiceHandler struct {
	conversation conversation
	speech       speaker
	gate         capturer
	notifier     notifier
}

func NewVoiceHandler(conv conversation, speech speaker, gate capturer, n notifier) *VoiceHandler {
	return &VoiceHandler{
		conversation: conv,
		speech:       speech,
		gate:         gate,
		notifier:     n,
	}
}

// Chat sends the message to the model, queues the reply for speech and
// returns it.
func (h *VoiceHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body", r))
		return
	}

	reply, err := h.conversation.Send(r.Context(), req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	log.Info("Conversation turn", "you", strings.TrimSpace(req.Message), "robo", reply)
	h.speech.Enqueue(reply)

	writeJSON(w, http.StatusOK, models.ChatResponse{Response: reply})
}

// STT captures from the server's microphone. Capture failures are soft:
// they come back as 200 with an error field.
func (h *VoiceHandler) STT(w http.ResponseWriter, r *http.Request) {
	var req models.STTRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body", r))
		return
	}

	timeout := clamp(int(req.Timeout), defaultSTTTimeout, maxSTTTimeout)
	phraseLimit := clamp(int(req.PhraseLimit), defaultSTTPhraseLimit, maxSTTPhraseLimit)

	res := h.gate.TryCapture(r.Context(), time.Duration(timeout)*time.Second, time.Duration(phraseLimit)*time.Second)

	resp := models.STTResponse{Text: res.Text}
	if res.Err != nil {
		msg := capture.UserMessage(res.Err)
		resp.Text = ""
		resp.Error = &msg
	}
	writeJSON(w, http.StatusOK, resp)
}

// Speak queues arbitrary text for speech. Empty text is accepted and ignored.
func (h *VoiceHandler) Speak(w http.ResponseWriter, r *http.Request) {
	var req models.SpeakRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("Invalid request body", r))
		return
	}

	if text := strings.TrimSpace(req.Text); text != "" {
		h.speech.Enqueue(text)
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "ok"})
}

// Reset starts a fresh conversation.
func (h *VoiceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.conversation.Reset()
	if h.notifier != nil {
		h.notifier.Publish(models.NewEvent(models.EventConversationReset, nil))
	}
	writeJSON(w, http.StatusOK, models.StatusResponse{Status: "ok", Message: "Conversation reset!"})
}

// clamp applies def to non-positive values and caps at max.
func clamp(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
