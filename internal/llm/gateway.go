// Package llm abstracts the model backend behind a small gateway. Remote
// providers (Anthropic, Google, OpenAI-compatible) and a local Ollama
// runtime all speak through langchaingo. The gateway never retries; the
// caller decides what a failed generation costs.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/planbot/internal/prompt"
)

// ErrProviderUnavailable marks any backend failure: transport, auth, quota,
// or an empty response. Callers distinguish it from caller-side
// cancellation, which surfaces as the context error.
var ErrProviderUnavailable = errors.New("llm provider unavailable")

// Gateway sends one payload to a model and returns its raw text output.
type Gateway interface {
	Name() string
	Generate(ctx context.Context, payload prompt.Payload) (string, error)
}

// Config selects and tunes a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

const defaultOllamaURL = "http://localhost:11434"

// New builds the gateway for the configured provider.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	var (
		model llms.Model
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case "claude":
		model, err = anthropic.New(
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		)
	case "gemini":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case "openai":
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	case "ollama":
		url := cfg.BaseURL
		if url == "" {
			url = defaultOllamaURL
		}
		model, err = ollama.New(
			ollama.WithServerURL(url),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", cfg.Provider, err)
	}

	return &gateway{
		model:       model,
		provider:    strings.ToLower(cfg.Provider),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

type gateway struct {
	model       llms.Model
	provider    string
	temperature float64
	maxTokens   int
}

func (g *gateway) Name() string { return g.provider }

// Generate sends the payload as a single human message with ordered text
// and image parts, and returns the first choice's text.
func (g *gateway) Generate(ctx context.Context, payload prompt.Payload) (string, error) {
	var parts []llms.ContentPart
	for _, part := range payload.Parts {
		switch {
		case len(part.ImageData) > 0:
			parts = append(parts, llms.BinaryPart(part.ImageMIME, part.ImageData))
		case part.ImageURL != "":
			parts = append(parts, llms.ImageURLPart(part.ImageURL))
		case part.Text != "":
			parts = append(parts, llms.TextPart(part.Text))
		}
	}

	msgs := []llms.MessageContent{{
		Role:  llms.ChatMessageTypeHuman,
		Parts: parts,
	}}

	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}

	resp, err := g.model.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Error().Err(err).Str("provider", g.provider).Msg("generation call failed")
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProviderUnavailable)
	}

	return resp.Choices[0].Content, nil
}
