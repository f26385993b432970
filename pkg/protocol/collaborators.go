package protocol

import (
	"context"

	"github.com/nova-hud/nova/pkg/models"
)

// CompletionRequest is one LLM call.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
	Scope     models.Scope
	// Override selects a specific integration/model instead of the configured default.
	Override *ModelOverride
}

// ModelOverride pins the provider and model for one call.
type ModelOverride struct {
	Provider string
	Model    string
}

// Completion is the text returned by an LLM call.
type Completion struct {
	Text     string
	Provider string
	Model    string
}

// Completer is the LLM completion capability.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// FetchKind selects the data-fetch capability.
type FetchKind string

const (
	FetchWebSearch FetchKind = "web-search"
	FetchHTTP      FetchKind = "http-request"
	FetchRSS       FetchKind = "rss-feed"
	FetchCoinbase  FetchKind = "coinbase"
)

// FetchRequest is one data-fetch call.
type FetchRequest struct {
	Kind            FetchKind
	Query           string
	URL             string
	Method          string
	Headers         map[string]string
	Body            string
	Symbols         []string
	Quote           string
	MaxResults      int
	IncludePageText bool
	Scope           models.Scope
}

// Fetcher is the data-fetch capability. Results carry data.results[] or
// data.prices[].
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (models.NodeOutput, error)
}

// DispatchRequest is one channel delivery.
type DispatchRequest struct {
	Channel    string
	Text       string
	Recipients []string
	Schedule   models.LegacySchedule
	Scope      models.Scope
	Meta       map[string]any
}

// DispatchResult is the outcome for one recipient.
type DispatchResult struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Status    int    `json:"status,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

// Dispatcher is the channel delivery capability. Failures are reported per
// recipient; the error return is reserved for failures before any delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) ([]DispatchResult, error)
}
