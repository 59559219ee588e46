package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"robo-backend/internal/capture"
)

const SystemInstruction = "You are ROBO AI, a friendly and intelligent voice assistant robot. " +
	"Keep all answers concise and natural for speech, 1 to 3 sentences max " +
	"unless the user explicitly asks for more detail. " +
	"NEVER use markdown, bullet points, asterisks, hashtags, or special formatting. " +
	"Output plain spoken text only. Be warm, helpful, clear, and occasionally witty."

const transcribePrompt = "Transcribe the speech in this audio recording verbatim. " +
	"Return plain text only, without quotes, markdown, or explanations. " +
	"If the recording contains no intelligible speech, return exactly " + noSpeechMarker + "."

const noSpeechMarker = "NO_SPEECH"

type GeminiOptions struct {
	APIKey          string
	Model           string
	MaxOutputTokens int
	Temperature     float64
	ConcurrentReqs  int

	// ClientOptions are appended after the API key (endpoint overrides).
	ClientOptions []option.ClientOption
}

// GeminiService is the remote conversational model and speech-to-text
// collaborator. It starts chat sessions for ConversationManager and
// transcribes captured audio for the capture gate.
type GeminiService struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	transcribe *genai.GenerativeModel
	modelName  string
	rateChan   chan struct{} // Token bucket
}

func NewGeminiService(ctx context.Context, opts GeminiOptions) (*GeminiService, error) {
	if opts.APIKey == "" {
		return nil, &ConfigurationError{Message: "GEMINI_API_KEY is not set"}
	}

	clientOpts := append([]option.ClientOption{option.WithAPIKey(opts.APIKey)}, opts.ClientOptions...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(opts.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(SystemInstruction))
	model.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	model.SetTemperature(float32(opts.Temperature))

	transcribe := client.GenerativeModel(opts.Model)
	transcribe.SetTemperature(0)
	transcribe.SetCandidateCount(1)

	concurrentReqs := opts.ConcurrentReqs
	if concurrentReqs <= 0 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:     client,
		model:      model,
		transcribe: transcribe,
		modelName:  opts.Model,
		rateChan:   rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

func (s *GeminiService) ModelName() string {
	return s.modelName
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// StartSession opens a new multi-turn chat configured with the persona.
func (s *GeminiService) StartSession() (ChatSession, error) {
	return &geminiChat{service: s, chat: s.model.StartChat()}, nil
}

type geminiChat struct {
	service *GeminiService
	chat    *genai.ChatSession
}

// SendMessage appends the turn to the chat history only when the model
// answers with text; a failed call or an empty reply leaves the history
// untouched so the next turn is not sent with an empty model content.
func (c *geminiChat) SendMessage(ctx context.Context, message string) (string, error) {
	if err := c.service.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.service.releaseRate()

	turns := len(c.chat.History)
	resp, err := c.chat.SendMessage(ctx, genai.Text(message))
	if err != nil {
		c.chat.History = c.chat.History[:turns]
		return "", err
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop && cand.FinishReason != genai.FinishReasonMaxTokens {
			log.Warn("Gemini stopped early", "candidate", i, "reason", cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		c.chat.History = c.chat.History[:turns]
		return "", nil
	}
	return text, nil
}

// Transcribe sends captured WAV audio to Gemini as inline data.
func (s *GeminiService) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if len(audio) == 0 {
		return "", capture.ErrUnintelligible
	}
	if err := s.acquireRate(ctx); err != nil {
		return "", &capture.ServiceError{Err: err}
	}
	defer s.releaseRate()

	resp, err := s.transcribe.GenerateContent(ctx,
		genai.Text(transcribePrompt),
		genai.Blob{MIMEType: mimeType, Data: audio},
	)
	if err != nil {
		return "", &capture.ServiceError{Err: err}
	}

	text := strings.TrimSpace(extractText(resp))
	if text == "" || strings.EqualFold(strings.Trim(text, "."), noSpeechMarker) {
		return "", capture.ErrUnintelligible
	}
	return text, nil
}

// extractText reads the first candidate, the one the chat history keeps.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}
