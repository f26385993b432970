package registry

import (
	"github.com/nova-hud/nova/pkg/cache"
	"github.com/nova-hud/nova/pkg/guardrail"
	"github.com/nova-hud/nova/pkg/humanize"
	"github.com/nova-hud/nova/pkg/metrics"
	"github.com/nova-hud/nova/pkg/nodes/ai"
	"github.com/nova-hud/nova/pkg/nodes/conditional"
	"github.com/nova-hud/nova/pkg/nodes/data"
	"github.com/nova-hud/nova/pkg/nodes/flow"
	"github.com/nova-hud/nova/pkg/nodes/merge"
	"github.com/nova-hud/nova/pkg/nodes/output"
	switchnode "github.com/nova-hud/nova/pkg/nodes/switch"
	"github.com/nova-hud/nova/pkg/nodes/transform"
	"github.com/nova-hud/nova/pkg/nodes/trigger"
	"github.com/nova-hud/nova/pkg/protocol"
	"github.com/nova-hud/nova/pkg/sandbox"
)

// Deps are the collaborators and services the built-in executors need.
// Nil services get a default.
type Deps struct {
	Completer  protocol.Completer
	Fetcher    protocol.Fetcher
	Dispatcher protocol.Dispatcher
	Cache      cache.Cache
	Sandbox    *sandbox.Sandbox
	Guardrail  *guardrail.Guardrail
	Humanizer  *humanize.Humanizer
	Metrics    *metrics.Metrics
}

// RegisterDefaultNodes registers an executor for every built-in node type.
func (r *Registry) RegisterDefaultNodes(deps Deps) {
	if deps.Sandbox == nil {
		deps.Sandbox = sandbox.New()
	}

	if deps.Cache == nil {
		deps.Cache = cache.NewMemory(cache.DefaultMaxEntries)
	}

	if deps.Metrics == nil {
		deps.Metrics = r.metrics
	}

	// Triggers
	r.Register(trigger.NewScheduleExecutor())
	r.Register(trigger.NewManualExecutor())
	r.Register(trigger.NewWebhookExecutor())
	r.Register(trigger.NewEventExecutor())

	// Data
	r.Register(data.NewWebSearchExecutor(deps.Fetcher, deps.Cache))
	r.Register(data.NewHTTPRequestExecutor(deps.Fetcher, deps.Cache))
	r.Register(data.NewRSSFeedExecutor(deps.Fetcher, deps.Cache))
	r.Register(data.NewCoinbaseExecutor(deps.Fetcher, deps.Cache))

	// AI
	r.Register(ai.NewSummarizeExecutor(deps.Completer))
	r.Register(ai.NewClassifyExecutor(deps.Completer))
	r.Register(ai.NewExtractExecutor(deps.Completer))
	r.Register(ai.NewGenerateExecutor(deps.Completer))
	r.Register(ai.NewChatExecutor(deps.Completer))

	// Logic
	r.Register(conditional.NewExecutor(deps.Sandbox, deps.Metrics))
	r.Register(switchnode.NewExecutor())
	r.Register(flow.NewLoopExecutor(deps.Sandbox, deps.Metrics))
	r.Register(merge.NewExecutor())
	r.Register(flow.NewSplitExecutor())
	r.Register(flow.NewWaitExecutor())

	// Transform
	r.Register(transform.NewSetVariablesExecutor())
	r.Register(transform.NewCodeExecutor(deps.Sandbox, deps.Metrics))
	r.Register(transform.NewFormatExecutor())
	r.Register(transform.NewFilterExecutor(deps.Sandbox, deps.Metrics))
	r.Register(transform.NewSortExecutor())
	r.Register(transform.NewDedupeExecutor())

	// Output
	for _, executor := range output.NewExecutors(output.Deps{
		Dispatcher: deps.Dispatcher,
		Guardrail:  deps.Guardrail,
		Humanizer:  deps.Humanizer,
		Metrics:    deps.Metrics,
	}) {
		r.Register(executor)
	}

	// Utility
	r.Register(flow.NewStickyNoteExecutor())
}
