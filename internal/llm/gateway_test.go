package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/planbot/internal/prompt"
)

type fakeModel struct {
	response string
	err      error
	got      []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, p string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, p, opts...)
}

func TestGenerateSendsOrderedParts(t *testing.T) {
	model := &fakeModel{response: `{"happy_path": []}`}
	g := &gateway{model: model, provider: "claude"}

	payload := prompt.Payload{Parts: []prompt.Part{
		{Text: "analyze this"},
		{ImageData: []byte{0x89, 0x50, 0x4e, 0x47}, ImageMIME: "image/png"},
		{ImageURL: "https://example/public.png"},
		{Text: "now generate"},
	}}

	out, err := g.Generate(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, `{"happy_path": []}`, out)

	require.Len(t, model.got, 1)
	msg := model.got[0]
	assert.Equal(t, llms.ChatMessageTypeHuman, msg.Role)
	require.Len(t, msg.Parts, 4)
	assert.Equal(t, llms.TextPart("analyze this"), msg.Parts[0])
	assert.Equal(t, llms.BinaryPart("image/png", []byte{0x89, 0x50, 0x4e, 0x47}), msg.Parts[1])
	assert.Equal(t, llms.ImageURLPart("https://example/public.png"), msg.Parts[2])
}

func TestGenerateMapsBackendFailure(t *testing.T) {
	g := &gateway{model: &fakeModel{err: errors.New("429 too many requests")}, provider: "gemini"}

	_, err := g.Generate(context.Background(), prompt.Payload{Parts: []prompt.Part{{Text: "hi"}}})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestGenerateCancellationIsNotProviderFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &gateway{model: &fakeModel{err: context.Canceled}, provider: "claude"}
	_, err := g.Generate(ctx, prompt.Payload{Parts: []prompt.Part{{Text: "hi"}}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
}

func TestGenerateEmptyResponse(t *testing.T) {
	g := &gateway{model: &emptyModel{}, provider: "ollama"}

	_, err := g.Generate(context.Background(), prompt.Payload{Parts: []prompt.Part{{Text: "hi"}}})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

type emptyModel struct{}

func (e *emptyModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{}, nil
}

func (e *emptyModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", nil
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "watson"})
	assert.ErrorContains(t, err, "unsupported llm provider")
}
