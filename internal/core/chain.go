package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gwi.com/product-recommender/internal/session"
)

type Stage string

const (
	StageRewrite   Stage = "rewrite"
	StageRetrieve  Stage = "retrieve"
	StageSummarize Stage = "summarize"
	StageGenerate  Stage = "generate"
)

// StageError reports which pipeline step failed a turn.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ChainRequest is everything the answer step sees.
type ChainRequest struct {
	Input       string
	ChatHistory []session.Message
	Context     []Document
	Memory      string
}

// Answer is the result of one completed turn.
type Answer struct {
	SessionID       string              `json:"session_id"`
	Answer          string              `json:"answer"`
	StandaloneQuery string              `json:"standalone_query"`
	Memory          string              `json:"memory"`
	Sources         []map[string]string `json:"sources"`
}

// QueryRewriter turns a follow-up message into a question that can be
// retrieved on without the conversation.
type QueryRewriter struct {
	model ChatModel
}

func NewQueryRewriter(model ChatModel) *QueryRewriter {
	return &QueryRewriter{model: model}
}

func (r *QueryRewriter) Rewrite(ctx context.Context, history []session.Message, input string) (string, error) {
	if len(history) == 0 {
		return input, nil
	}
	out, err := r.model.Chat(ctx, ChatRequest{
		System:  RewriteInstruction,
		History: history,
		Human:   input,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return input, nil
	}
	return out, nil
}

// PreferenceSummarizer extracts stated user constraints from scratch on
// every turn.
type PreferenceSummarizer struct {
	model ChatModel
}

func NewPreferenceSummarizer(model ChatModel) *PreferenceSummarizer {
	return &PreferenceSummarizer{model: model}
}

func (p *PreferenceSummarizer) Summarize(ctx context.Context, history []session.Message, input string) (string, error) {
	out, err := p.model.Chat(ctx, ChatRequest{
		System:  PreferenceInstruction,
		History: history,
		Human:   preferenceHumanPrefix + input,
	})
	if err != nil {
		return "", err
	}
	return normalizeSummary(out), nil
}

// normalizeSummary collapses every spelling of an empty summary ("None.",
// "- none", blank) to NoPreferences.
func normalizeSummary(s string) string {
	trimmed := strings.TrimSpace(s)
	bare := strings.ToLower(strings.Trim(trimmed, " \t\r\n\"'`.*-"))
	if bare == "" || bare == NoPreferences {
		return NoPreferences
	}
	return trimmed
}

// AnswerGenerator writes the final markdown reply.
type AnswerGenerator struct {
	model ChatModel
}

func NewAnswerGenerator(model ChatModel) *AnswerGenerator {
	return &AnswerGenerator{model: model}
}

func (g *AnswerGenerator) Generate(ctx context.Context, req ChainRequest) (string, error) {
	system, err := renderAnswerSystem(req.Memory, req.Context)
	if err != nil {
		return "", fmt.Errorf("failed to render answer instruction: %w", err)
	}
	out, err := g.model.Chat(ctx, ChatRequest{
		System:  system,
		History: req.ChatHistory,
		Human:   answerHumanPrefix + req.Input,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Chain runs one conversational turn: rewrite then retrieve, in parallel
// with preference summarization, then generation.
type Chain struct {
	sessions   session.Store
	rewriter   *QueryRewriter
	retriever  Retriever
	summarizer *PreferenceSummarizer
	generator  *AnswerGenerator
	k          int
	log        *zap.Logger
}

func NewChain(model ChatModel, retriever Retriever, sessions session.Store, k int, log *zap.Logger) *Chain {
	return &Chain{
		sessions:   sessions,
		rewriter:   NewQueryRewriter(model),
		retriever:  retriever,
		summarizer: NewPreferenceSummarizer(model),
		generator:  NewAnswerGenerator(model),
		k:          k,
		log:        log,
	}
}

// Invoke runs a turn for sessionID. On success the input and the answer are
// appended to the session history; on any failure the history is untouched.
func (c *Chain) Invoke(ctx context.Context, input, sessionID string) (*Answer, error) {
	start := time.Now()
	log := c.log.With(zap.String("session_id", sessionID))

	history := c.sessions.GetHistory(sessionID)
	history.Lock()
	defer history.Unlock()

	chatHistory := history.Messages()

	var (
		standalone string
		docs       []Document
		memory     string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := c.rewriter.Rewrite(gctx, chatHistory, input)
		if err != nil {
			return &StageError{Stage: StageRewrite, Err: err}
		}
		found, err := c.retriever.Search(gctx, q, c.k)
		if err != nil {
			return &StageError{Stage: StageRetrieve, Err: err}
		}
		standalone, docs = q, found
		return nil
	})
	g.Go(func() error {
		m, err := c.summarizer.Summarize(gctx, chatHistory, input)
		if err != nil {
			return &StageError{Stage: StageSummarize, Err: err}
		}
		memory = m
		return nil
	})
	if err := g.Wait(); err != nil {
		log.Error("turn aborted", zap.Error(err))
		return nil, err
	}

	answer, err := c.generator.Generate(ctx, ChainRequest{
		Input:       input,
		ChatHistory: chatHistory,
		Context:     docs,
		Memory:      memory,
	})
	if err != nil {
		err = &StageError{Stage: StageGenerate, Err: err}
		log.Error("turn aborted", zap.Error(err))
		return nil, err
	}

	history.Append(
		session.Message{Role: session.RoleUser, Content: input},
		session.Message{Role: session.RoleAssistant, Content: answer},
	)
	// A long turn must not let the session expire under it.
	c.sessions.Touch(sessionID, history)

	sources := make([]map[string]string, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, d.Metadata)
	}

	log.Info("turn completed",
		zap.Int("documents", len(docs)),
		zap.Bool("has_preferences", memory != NoPreferences),
		zap.Duration("elapsed", time.Since(start)))

	return &Answer{
		SessionID:       sessionID,
		Answer:          answer,
		StandaloneQuery: standalone,
		Memory:          memory,
		Sources:         sources,
	}, nil
}
