package gemini

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/nova-hud/nova/pkg/protocol"
)

type fakeModels struct {
	reply  string
	err    error
	model  string
	config *genai.GenerateContentConfig
	user   string

	deadline time.Time
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	f.deadline, _ = ctx.Deadline()

	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.user = contents[0].Parts[0].Text
	}

	if f.err != nil {
		return nil, f.err
	}

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

func TestCompleter_Complete(t *testing.T) {
	fake := &fakeModels{reply: "  Markets are calm.  "}
	c := newCompleter(fake, "gemini-2.5-flash", slog.Default())

	got, err := c.Complete(context.Background(), protocol.CompletionRequest{
		System:    "be brief",
		User:      "summarize",
		MaxTokens: 256,
	})
	require.NoError(t, err)

	assert.Equal(t, "Markets are calm.", got.Text)
	assert.Equal(t, ProviderName, got.Provider)
	assert.Equal(t, "gemini-2.5-flash", fake.model)
	assert.Equal(t, "summarize", fake.user)
	assert.Equal(t, int32(256), fake.config.MaxOutputTokens)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "be brief", fake.config.SystemInstruction.Parts[0].Text)
}

func TestCompleter_Override(t *testing.T) {
	fake := &fakeModels{reply: "ok"}
	c := newCompleter(fake, "gemini-2.5-flash", slog.Default())

	got, err := c.Complete(context.Background(), protocol.CompletionRequest{
		User:     "x",
		Override: &protocol.ModelOverride{Provider: "Gemini", Model: "gemini-2.5-pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", got.Model)
	assert.Nil(t, fake.config.SystemInstruction)

	_, err = c.Complete(context.Background(), protocol.CompletionRequest{
		User:     "x",
		Override: &protocol.ModelOverride{Provider: "openai", Model: "gpt"},
	})
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestCompleter_Errors(t *testing.T) {
	boom := errors.New("quota exceeded")

	_, err := newCompleter(&fakeModels{err: boom}, "m", slog.Default()).
		Complete(context.Background(), protocol.CompletionRequest{User: "x"})
	assert.ErrorIs(t, err, boom)

	_, err = newCompleter(&fakeModels{reply: "   "}, "m", slog.Default()).
		Complete(context.Background(), protocol.CompletionRequest{User: "x"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), "", "m", slog.Default())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestCompleter_BoundsEachRequest(t *testing.T) {
	fake := &fakeModels{reply: "ok"}
	c := newCompleter(fake, "m", slog.Default())
	c.timeout = time.Second

	started := time.Now()

	_, err := c.Complete(context.Background(), protocol.CompletionRequest{User: "hi"})
	require.NoError(t, err)

	require.False(t, fake.deadline.IsZero())
	assert.WithinDuration(t, started.Add(time.Second), fake.deadline, 500*time.Millisecond)
}
