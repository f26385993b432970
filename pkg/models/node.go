// Package models defines the mission graph, its node variants and run records.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownNodeType is returned when a node's type tag has no variant.
var ErrUnknownNodeType = errors.New("unknown node type")

// NodeKind groups node types by the role they play in a mission.
type NodeKind string

const (
	KindTrigger   NodeKind = "trigger"
	KindData      NodeKind = "data"
	KindAI        NodeKind = "ai"
	KindLogic     NodeKind = "logic"
	KindTransform NodeKind = "transform"
	KindOutput    NodeKind = "output"
	KindUtility   NodeKind = "utility"
)

// NodeType is the type tag carried by every persisted node.
type NodeType string

const (
	NodeTypeScheduleTrigger NodeType = "schedule-trigger"
	NodeTypeManualTrigger   NodeType = "manual-trigger"
	NodeTypeWebhookTrigger  NodeType = "webhook-trigger"
	NodeTypeEventTrigger    NodeType = "event-trigger"

	NodeTypeWebSearch   NodeType = "web-search"
	NodeTypeHTTPRequest NodeType = "http-request"
	NodeTypeRSSFeed     NodeType = "rss-feed"
	NodeTypeCoinbase    NodeType = "coinbase"

	NodeTypeAISummarize NodeType = "ai-summarize"
	NodeTypeAIClassify  NodeType = "ai-classify"
	NodeTypeAIExtract   NodeType = "ai-extract"
	NodeTypeAIGenerate  NodeType = "ai-generate"
	NodeTypeAIChat      NodeType = "ai-chat"

	NodeTypeCondition NodeType = "condition"
	NodeTypeSwitch    NodeType = "switch"
	NodeTypeLoop      NodeType = "loop"
	NodeTypeMerge     NodeType = "merge"
	NodeTypeSplit     NodeType = "split"
	NodeTypeWait      NodeType = "wait"

	NodeTypeSetVariables NodeType = "set-variables"
	NodeTypeCode         NodeType = "code"
	NodeTypeFormat       NodeType = "format"
	NodeTypeFilter       NodeType = "filter"
	NodeTypeSort         NodeType = "sort"
	NodeTypeDedupe       NodeType = "dedupe"

	NodeTypeTelegramOutput NodeType = "telegram-output"
	NodeTypeDiscordOutput  NodeType = "discord-output"
	NodeTypeEmailOutput    NodeType = "email-output"
	NodeTypeWebhookOutput  NodeType = "webhook-output"
	NodeTypeSlackOutput    NodeType = "slack-output"
	NodeTypeNovaChatOutput NodeType = "novachat-output"

	NodeTypeStickyNote NodeType = "sticky-note"
)

var nodeKinds = map[NodeType]NodeKind{
	NodeTypeScheduleTrigger: KindTrigger,
	NodeTypeManualTrigger:   KindTrigger,
	NodeTypeWebhookTrigger:  KindTrigger,
	NodeTypeEventTrigger:    KindTrigger,
	NodeTypeWebSearch:       KindData,
	NodeTypeHTTPRequest:     KindData,
	NodeTypeRSSFeed:         KindData,
	NodeTypeCoinbase:        KindData,
	NodeTypeAISummarize:     KindAI,
	NodeTypeAIClassify:      KindAI,
	NodeTypeAIExtract:       KindAI,
	NodeTypeAIGenerate:      KindAI,
	NodeTypeAIChat:          KindAI,
	NodeTypeCondition:       KindLogic,
	NodeTypeSwitch:          KindLogic,
	NodeTypeLoop:            KindLogic,
	NodeTypeMerge:           KindLogic,
	NodeTypeSplit:           KindLogic,
	NodeTypeWait:            KindLogic,
	NodeTypeSetVariables:    KindTransform,
	NodeTypeCode:            KindTransform,
	NodeTypeFormat:          KindTransform,
	NodeTypeFilter:          KindTransform,
	NodeTypeSort:            KindTransform,
	NodeTypeDedupe:          KindTransform,
	NodeTypeTelegramOutput:  KindOutput,
	NodeTypeDiscordOutput:   KindOutput,
	NodeTypeEmailOutput:     KindOutput,
	NodeTypeWebhookOutput:   KindOutput,
	NodeTypeSlackOutput:     KindOutput,
	NodeTypeNovaChatOutput:  KindOutput,
	NodeTypeStickyNote:      KindUtility,
}

// Kind returns the kind of the node type, or "" for unknown types.
func (t NodeType) Kind() NodeKind {
	return nodeKinds[t]
}

// Valid reports whether t names a known variant.
func (t NodeType) Valid() bool {
	_, ok := nodeKinds[t]

	return ok
}

var catalogue = []NodeType{
	NodeTypeScheduleTrigger, NodeTypeManualTrigger, NodeTypeWebhookTrigger, NodeTypeEventTrigger,
	NodeTypeWebSearch, NodeTypeHTTPRequest, NodeTypeRSSFeed, NodeTypeCoinbase,
	NodeTypeAISummarize, NodeTypeAIClassify, NodeTypeAIExtract, NodeTypeAIGenerate, NodeTypeAIChat,
	NodeTypeCondition, NodeTypeSwitch, NodeTypeLoop, NodeTypeMerge, NodeTypeSplit, NodeTypeWait,
	NodeTypeSetVariables, NodeTypeCode, NodeTypeFormat, NodeTypeFilter, NodeTypeSort, NodeTypeDedupe,
	NodeTypeTelegramOutput, NodeTypeDiscordOutput, NodeTypeEmailOutput, NodeTypeWebhookOutput,
	NodeTypeSlackOutput, NodeTypeNovaChatOutput,
	NodeTypeStickyNote,
}

// AllNodeTypes returns every declared node type in catalogue order.
func AllNodeTypes() []NodeType {
	return slices.Clone(catalogue)
}

// Position is the canvas position of a node; the engine ignores it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeBase holds the fields shared by every node variant.
type NodeBase struct {
	ID       string    `json:"id"                 validate:"required"`
	Type     NodeType  `json:"type"               validate:"required"`
	Label    string    `json:"label"`
	Position *Position `json:"position,omitempty"`
}

// Base returns the shared node fields.
func (b *NodeBase) Base() *NodeBase { return b }

func (*NodeBase) isNode() {}

// Node is the sealed sum type over all node variants. Only types embedding
// NodeBase satisfy it.
type Node interface {
	Base() *NodeBase
	isNode()
}

// Trigger nodes.

type ScheduleTriggerNode struct {
	NodeBase

	TriggerMode            string   `json:"triggerMode"            validate:"omitempty,oneof=daily weekly once interval"`
	TriggerTime            string   `json:"triggerTime"`
	TriggerTimezone        string   `json:"triggerTimezone,omitempty"`
	TriggerDays            []string `json:"triggerDays,omitempty"`
	TriggerIntervalMinutes int      `json:"triggerIntervalMinutes,omitempty" validate:"gte=0"`
	TriggerWindowMinutes   int      `json:"triggerWindowMinutes,omitempty"   validate:"gte=0"`
}

type ManualTriggerNode struct {
	NodeBase
}

type WebhookTriggerNode struct {
	NodeBase

	WebhookPath   string `json:"webhookPath,omitempty"`
	WebhookSecret string `json:"webhookSecret,omitempty"`
}

type EventTriggerNode struct {
	NodeBase

	EventName string `json:"eventName" validate:"required"`
}

// Data nodes.

type WebSearchNode struct {
	NodeBase

	Query        string `json:"query"        validate:"required"`
	MaxResults   int    `json:"maxResults,omitempty"`
	FetchContent bool   `json:"fetchContent,omitempty"`
}

type HTTPRequestNode struct {
	NodeBase

	URL     string            `json:"url"               validate:"required"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

type RSSFeedNode struct {
	NodeBase

	URL      string `json:"url"      validate:"required"`
	MaxItems int    `json:"maxItems,omitempty"`
}

type CoinbaseNode struct {
	NodeBase

	Assets []string `json:"assets" validate:"required,min=1"`
	Quote  string   `json:"quote,omitempty"`
}

// AI nodes.

// AIConfig is shared by the ai-* variants.
type AIConfig struct {
	InputExpression string `json:"inputExpression,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	SystemPrompt    string `json:"systemPrompt,omitempty"`
	Integration     string `json:"integration,omitempty"`
	Model           string `json:"model,omitempty"`
	DetailLevel     string `json:"detailLevel,omitempty"`
}

type AISummarizeNode struct {
	NodeBase
	AIConfig
}

type AIClassifyNode struct {
	NodeBase
	AIConfig

	Categories []string `json:"categories" validate:"required,min=1"`
}

type AIExtractNode struct {
	NodeBase
	AIConfig

	Fields []string `json:"fields" validate:"required,min=1"`
}

type AIGenerateNode struct {
	NodeBase
	AIConfig
}

type AIChatNode struct {
	NodeBase
	AIConfig

	Message string `json:"message,omitempty"`
}

// Logic nodes.

// ConditionRule compares a resolved field against a value.
type ConditionRule struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    string `json:"value,omitempty"`
}

type ConditionNode struct {
	NodeBase

	Expression string          `json:"expression,omitempty"`
	Rules      []ConditionRule `json:"rules,omitempty"`
	Logic      string          `json:"logic,omitempty" validate:"omitempty,oneof=all any"`
}

// SwitchCase routes a matched value to a port.
type SwitchCase struct {
	Value string `json:"value"`
	Port  string `json:"port,omitempty"`
}

type SwitchNode struct {
	NodeBase

	Expression  string       `json:"expression" validate:"required"`
	Cases       []SwitchCase `json:"cases"`
	DefaultPort string       `json:"defaultPort,omitempty"`
}

type LoopNode struct {
	NodeBase

	InputExpression string `json:"inputExpression,omitempty"`
	Expression      string `json:"expression,omitempty"`
	MaxIterations   int    `json:"maxIterations,omitempty" validate:"gte=0"`
}

type MergeNode struct {
	NodeBase

	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=all any"`
}

type SplitNode struct {
	NodeBase
}

type WaitNode struct {
	NodeBase

	DurationMs int64 `json:"durationMs" validate:"gte=0"`
}

// Transform nodes.

// Assignment sets one variable from an expression.
type Assignment struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SetVariablesNode struct {
	NodeBase

	Assignments []Assignment `json:"assignments"`
}

type CodeNode struct {
	NodeBase

	Code string `json:"code" validate:"required"`
}

type FormatNode struct {
	NodeBase

	Template     string `json:"template"               validate:"required"`
	OutputFormat string `json:"outputFormat,omitempty" validate:"omitempty,oneof=text markdown json"`
}

type FilterNode struct {
	NodeBase

	Expression string `json:"expression" validate:"required"`
	Mode       string `json:"mode,omitempty" validate:"omitempty,oneof=keep exclude"`
}

type SortNode struct {
	NodeBase

	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=asc desc"`
}

type DedupeNode struct {
	NodeBase

	Field string `json:"field,omitempty"`
}

// Output nodes.

// OutputConfig is shared by the *-output variants.
type OutputConfig struct {
	InputExpression string `json:"inputExpression,omitempty"`
	MessageTemplate string `json:"messageTemplate,omitempty"`
	DetailLevel     string `json:"detailLevel,omitempty" validate:"omitempty,oneof=concise standard detailed"`
}

// Output returns the shared output configuration.
func (c *OutputConfig) Output() *OutputConfig { return c }

// OutputNode is satisfied by every *-output variant.
type OutputNode interface {
	Node
	Output() *OutputConfig
}

type TelegramOutputNode struct {
	NodeBase
	OutputConfig

	ChatIDs []string `json:"chatIds,omitempty"`
}

type DiscordOutputNode struct {
	NodeBase
	OutputConfig

	WebhookURLs []string `json:"webhookUrls,omitempty"`
}

type EmailOutputNode struct {
	NodeBase
	OutputConfig

	Recipients []string `json:"recipients,omitempty"`
	Subject    string   `json:"subject,omitempty"`
}

type WebhookOutputNode struct {
	NodeBase
	OutputConfig

	WebhookURLs []string `json:"webhookUrls,omitempty"`
}

type SlackOutputNode struct {
	NodeBase
	OutputConfig

	WebhookURLs []string `json:"webhookUrls,omitempty"`
}

type NovaChatOutputNode struct {
	NodeBase
	OutputConfig
}

// Utility nodes.

type StickyNoteNode struct {
	NodeBase

	Content string `json:"content,omitempty"`
}

// NewNode returns a zero value of the variant tagged t.
func NewNode(t NodeType) (Node, error) {
	var n Node

	switch t {
	case NodeTypeScheduleTrigger:
		n = &ScheduleTriggerNode{}
	case NodeTypeManualTrigger:
		n = &ManualTriggerNode{}
	case NodeTypeWebhookTrigger:
		n = &WebhookTriggerNode{}
	case NodeTypeEventTrigger:
		n = &EventTriggerNode{}
	case NodeTypeWebSearch:
		n = &WebSearchNode{}
	case NodeTypeHTTPRequest:
		n = &HTTPRequestNode{}
	case NodeTypeRSSFeed:
		n = &RSSFeedNode{}
	case NodeTypeCoinbase:
		n = &CoinbaseNode{}
	case NodeTypeAISummarize:
		n = &AISummarizeNode{}
	case NodeTypeAIClassify:
		n = &AIClassifyNode{}
	case NodeTypeAIExtract:
		n = &AIExtractNode{}
	case NodeTypeAIGenerate:
		n = &AIGenerateNode{}
	case NodeTypeAIChat:
		n = &AIChatNode{}
	case NodeTypeCondition:
		n = &ConditionNode{}
	case NodeTypeSwitch:
		n = &SwitchNode{}
	case NodeTypeLoop:
		n = &LoopNode{}
	case NodeTypeMerge:
		n = &MergeNode{}
	case NodeTypeSplit:
		n = &SplitNode{}
	case NodeTypeWait:
		n = &WaitNode{}
	case NodeTypeSetVariables:
		n = &SetVariablesNode{}
	case NodeTypeCode:
		n = &CodeNode{}
	case NodeTypeFormat:
		n = &FormatNode{}
	case NodeTypeFilter:
		n = &FilterNode{}
	case NodeTypeSort:
		n = &SortNode{}
	case NodeTypeDedupe:
		n = &DedupeNode{}
	case NodeTypeTelegramOutput:
		n = &TelegramOutputNode{}
	case NodeTypeDiscordOutput:
		n = &DiscordOutputNode{}
	case NodeTypeEmailOutput:
		n = &EmailOutputNode{}
	case NodeTypeWebhookOutput:
		n = &WebhookOutputNode{}
	case NodeTypeSlackOutput:
		n = &SlackOutputNode{}
	case NodeTypeNovaChatOutput:
		n = &NovaChatOutputNode{}
	case NodeTypeStickyNote:
		n = &StickyNoteNode{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}

	n.Base().Type = t

	return n, nil
}

// DecodeNode decodes one persisted node, dispatching on its type tag.
func DecodeNode(raw []byte) (Node, error) {
	var tag struct {
		Type NodeType `json:"type"`
	}

	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("failed to read node type: %w", err)
	}

	node, err := NewNode(tag.Type)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(raw, node); err != nil {
		return nil, fmt.Errorf("failed to decode %s node: %w", tag.Type, err)
	}

	return node, nil
}
