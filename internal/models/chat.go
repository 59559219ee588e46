package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the assistant.
type ChatResponse struct {
	Response string `json:"response"`
}

type SpeakRequest struct {
	Text string `json:"text"`
}

// STTRequest configures a server-side microphone capture. Zero values fall
// back to the defaults applied by the handler.
type STTRequest struct {
	Timeout     LenientInt `json:"timeout"`
	PhraseLimit LenientInt `json:"phrase_limit"`
}

// LenientInt decodes a JSON number or a numeric string such as "8".
// Fractions truncate toward zero and null leaves the value unchanged.
type LenientInt int

func (n *LenientInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid number %s", data)
		}
		s = strings.TrimSpace(unquoted)
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("invalid number %s", data)
	}
	f = math.Max(math.Min(math.Trunc(f), math.MaxInt32), math.MinInt32)
	*n = LenientInt(f)
	return nil
}

// STTResponse always carries both fields; Error is null on success.
type STTResponse struct {
	Text  string  `json:"text"`
	Error *string `json:"error"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Model    string `json:"model"`
	SDK      string `json:"sdk"`
	TTS      string `json:"tts"`
	STT      string `json:"stt"`
	APIReady bool   `json:"api_ready"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
