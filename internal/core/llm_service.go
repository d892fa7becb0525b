package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gwi.com/product-recommender/internal/session"
)

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

var ErrEmptyResponse = errors.New("model returned no text")

// ChatRequest is one chat-style call: a system instruction, the prior turns
// and a final human message.
type ChatRequest struct {
	System  string
	History []session.Message
	Human   string
}

// ChatModel is the generation backend used by every pipeline step.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Embedder produces embedding vectors for retrieval.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type LLMOptions struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
	Temperature    float32
	// Timeout bounds each model call. Zero means no local deadline.
	Timeout time.Duration
}

// LLMService talks to Gemini for both chat completions and embeddings.
type LLMService struct {
	client *genai.Client
	opts   LLMOptions
	log    *zap.Logger
}

func NewLLMService(ctx context.Context, opts LLMOptions, log *zap.Logger) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client: client,
		opts:   opts,
		log:    log,
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.log.Warn("error closing GenAI client", zap.Error(err))
		} else {
			s.log.Info("GenAI client closed")
		}
	}
}

func (s *LLMService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout > 0 {
		return context.WithTimeout(ctx, s.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	em := s.client.EmbeddingModel(s.opts.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (s *LLMService) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if strings.TrimSpace(req.Human) == "" {
		return "", fmt.Errorf("chat request has no human message")
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	model := s.client.GenerativeModel(s.opts.ChatModel)
	model.SetTemperature(s.opts.Temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	chatSession := model.StartChat()
	chatSession.History = toGeminiHistory(req.History)

	resp, err := chatSession.SendMessage(ctx, genai.Text(req.Human))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	s.log.Debug("gemini chat completed",
		zap.Int("history_len", len(req.History)), zap.Int("response_len", len(text)))
	return text, nil
}

func toGeminiHistory(msgs []session.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := geminiRoleUser
		if m.Role == session.RoleAssistant {
			role = geminiRoleModel
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}
