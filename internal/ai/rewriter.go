// Package ai rewrites release notes with an OpenAI-compatible chat model.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// ErrEmptyCompletion is returned when the model produced no text.
var ErrEmptyCompletion = errors.New("model returned no content")

// Tones accepted by Rewrite.
const (
	ToneFriendly     = "friendly"
	ToneProfessional = "professional"
	ToneConcise      = "concise"
)

const systemPrompt = `You rewrite software release notes for end users of a product.
Keep every fact, version number, link and image from the input. Do not invent features.
Answer with GitHub-flavored markdown only, without a preamble or code fences around the whole answer.`

// Config configures the rewriter.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

// Rewriter calls the chat completions API.
type Rewriter struct {
	client    openai.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewRewriter creates a rewriter. Extra options are appended to the client options.
func NewRewriter(cfg Config, logger *zap.Logger, opts ...option.RequestOption) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return &Rewriter{
		client:    openai.NewClient(clientOpts...),
		model:     model,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

func toneInstruction(tone string) string {
	switch tone {
	case ToneProfessional:
		return "Use a professional, neutral tone."
	case ToneConcise:
		return "Be as short as possible: a one-line summary followed by bullet points."
	default:
		return "Use a warm, friendly tone and lead with the benefit to the user."
	}
}

// Rewrite returns an end-user friendly markdown version of the release.
func (r *Rewriter) Rewrite(ctx context.Context, title, markdown, tone string) (string, error) {
	var user strings.Builder
	user.WriteString(toneInstruction(tone))
	user.WriteString("\n\nTitle: ")
	user.WriteString(title)
	user.WriteString("\n\n")
	user.WriteString(markdown)

	start := time.Now()
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user.String()),
		},
		MaxCompletionTokens: openai.Int(r.maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai rewrite: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrEmptyCompletion
	}
	r.logger.Debug("release rewritten",
		zap.String("model", r.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))
	return out, nil
}
