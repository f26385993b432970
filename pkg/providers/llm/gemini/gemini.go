// Package gemini implements the completion collaborator over the Google
// Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/nova-hud/nova/pkg/protocol"
)

const (
	// ProviderName is the value accepted in ModelOverride.Provider.
	ProviderName = "gemini"
	// DefaultTimeout bounds one completion request.
	DefaultTimeout = 90 * time.Second
)

var (
	// ErrMissingAPIKey is returned by New without credentials.
	ErrMissingAPIKey = errors.New("gemini API key is required")
	// ErrUnsupportedProvider is returned when an override names another provider.
	ErrUnsupportedProvider = errors.New("unsupported completion provider")
	// ErrEmptyCompletion is returned when the model produced no text.
	ErrEmptyCompletion = errors.New("model returned no text")
)

type generator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Completer sends completion requests to Gemini.
type Completer struct {
	models  generator
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures the client built by New.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(url string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = url
	}
}

// WithTimeout bounds each completion request. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.Timeout = &timeout
	}
}

// New creates a Completer that uses model unless a request overrides it.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger, opts ...Option) (*Completer, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	timeout := DefaultTimeout

	cfg := &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{Timeout: &timeout},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.HTTPOptions.Timeout != nil {
		timeout = *cfg.HTTPOptions.Timeout
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	completer := newCompleter(client.Models, model, logger)
	completer.timeout = timeout

	return completer, nil
}

func newCompleter(models generator, model string, logger *slog.Logger) *Completer {
	return &Completer{
		models:  models,
		model:   model,
		timeout: DefaultTimeout,
		logger:  logger.With("module", "gemini_completer"),
	}
}

func (c *Completer) Complete(ctx context.Context, req protocol.CompletionRequest) (protocol.Completion, error) {
	model := c.model

	if o := req.Override; o != nil {
		if o.Provider != "" && !strings.EqualFold(o.Provider, ProviderName) {
			return protocol.Completion{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, o.Provider)
		}

		if o.Model != "" {
			model = o.Model
		}
	}

	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.DebugContext(ctx, "Requesting completion", "model", model, "user_id", req.Scope.UserID)

	resp, err := c.models.GenerateContent(ctx, model, genai.Text(req.User), config)
	if err != nil {
		return protocol.Completion{}, fmt.Errorf("gemini completion failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return protocol.Completion{}, ErrEmptyCompletion
	}

	return protocol.Completion{Text: text, Provider: ProviderName, Model: model}, nil
}
