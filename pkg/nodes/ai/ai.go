// Package ai provides the LLM-backed executors. They resolve an input string,
// build a prompt and call the Completer collaborator with a per-kind token
// ceiling.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/nova-hud/nova/pkg/execution"
	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/protocol"
)

// Token ceilings per node kind.
var maxTokens = map[models.NodeType]int{
	models.NodeTypeAISummarize: 900,
	models.NodeTypeAIClassify:  500,
	models.NodeTypeAIExtract:   900,
	models.NodeTypeAIGenerate:  2200,
	models.NodeTypeAIChat:      1400,
}

// MaxTokens returns the token ceiling of an AI node type.
func MaxTokens(t models.NodeType) int {
	return maxTokens[t]
}

const baseSystemPrompt = "You are Nova, a concise personal assistant. Use only the information provided. " +
	"Never invent facts, prices, scores or quotes."

var detailInstructions = map[string]string{
	"concise":  "Answer in at most three short sentences.",
	"standard": "Answer in about five sentences or a short bullet list.",
	"detailed": "Answer thoroughly in up to eight sentences or a structured bullet list.",
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// Executor handles one ai-* node type.
type Executor struct {
	nodeType  models.NodeType
	completer protocol.Completer
}

func NewSummarizeExecutor(c protocol.Completer) *Executor {
	return &Executor{nodeType: models.NodeTypeAISummarize, completer: c}
}

func NewClassifyExecutor(c protocol.Completer) *Executor {
	return &Executor{nodeType: models.NodeTypeAIClassify, completer: c}
}

func NewExtractExecutor(c protocol.Completer) *Executor {
	return &Executor{nodeType: models.NodeTypeAIExtract, completer: c}
}

func NewGenerateExecutor(c protocol.Completer) *Executor {
	return &Executor{nodeType: models.NodeTypeAIGenerate, completer: c}
}

func NewChatExecutor(c protocol.Completer) *Executor {
	return &Executor{nodeType: models.NodeTypeAIChat, completer: c}
}

func (e *Executor) Type() models.NodeType { return e.nodeType }

func (e *Executor) Execute(ctx context.Context, node models.Node, ec *execution.Context) models.NodeOutput {
	if node == nil || node.Base().Type != e.nodeType {
		return nodes.WrongType(node, e.nodeType)
	}

	if e.completer == nil {
		return models.Failed("no LLM completer configured", nodes.CodeCollaborator)
	}

	cfg, task, finish := e.plan(node)
	input := ec.InputText(node.Base().ID, cfg.InputExpression)

	if chat, ok := node.(*models.AIChatNode); ok && chat.Message != "" {
		input = ec.ResolveExpr(chat.Message)
	}

	prompt := strings.TrimSpace(ec.ResolveExpr(cfg.Prompt))
	if input == "" && prompt == "" {
		return models.Failed("no input text and no prompt", nodes.CodeNoInput)
	}

	req := protocol.CompletionRequest{
		System:    systemPrompt(cfg, task),
		User:      userPrompt(prompt, input),
		MaxTokens: maxTokens[e.nodeType],
		Scope:     ec.Scope,
	}

	if cfg.Integration != "" || cfg.Model != "" {
		req.Override = &protocol.ModelOverride{Provider: cfg.Integration, Model: cfg.Model}
	}

	completion, err := e.completer.Complete(ctx, req)
	if err != nil {
		ec.Logger.Warn("Completion failed", "node_id", node.Base().ID, "node_type", e.nodeType, "error", err)

		return models.Failed(err.Error(), nodes.CodeCollaborator)
	}

	text := strings.TrimSpace(completion.Text)
	out := models.NodeOutput{
		OK:   true,
		Text: text,
		Data: map[string]any{
			"provider": completion.Provider,
			"model":    completion.Model,
		},
	}

	if finish != nil {
		finish(&out)
	}

	return out
}

// plan returns the node's AI config, the task instruction and an optional
// post-processing step for the kind.
func (e *Executor) plan(node models.Node) (models.AIConfig, string, func(*models.NodeOutput)) {
	switch n := node.(type) {
	case *models.AISummarizeNode:
		return n.AIConfig, "Summarize the material below, keeping names, numbers and dates exact.", nil
	case *models.AIClassifyNode:
		task := fmt.Sprintf("Classify the material below into exactly one of these categories: %s. "+
			"Reply with the category name only.", strings.Join(n.Categories, ", "))

		return n.AIConfig, task, func(out *models.NodeOutput) { classify(out, n.Categories) }
	case *models.AIExtractNode:
		task := fmt.Sprintf("Extract these fields from the material below: %s. "+
			"Reply with a single JSON object using those keys; use null when a field is absent.", strings.Join(n.Fields, ", "))

		return n.AIConfig, task, extract
	case *models.AIGenerateNode:
		return n.AIConfig, "Write the requested text.", nil
	case *models.AIChatNode:
		return n.AIConfig, "Reply to the user's message.", nil
	}

	return models.AIConfig{}, "", nil
}

func systemPrompt(cfg models.AIConfig, task string) string {
	parts := []string{baseSystemPrompt}

	if cfg.SystemPrompt != "" {
		parts = append(parts, cfg.SystemPrompt)
	}

	parts = append(parts, task)

	if instruction, ok := detailInstructions[cfg.DetailLevel]; ok {
		parts = append(parts, instruction)
	}

	return strings.Join(parts, "\n\n")
}

func userPrompt(prompt, input string) string {
	switch {
	case prompt == "":
		return input
	case input == "":
		return prompt
	default:
		return prompt + "\n\n---\n" + input
	}
}

// classify matches the reply against the categories and routes the output
// to a port named after the category.
func classify(out *models.NodeOutput, categories []string) {
	reply := strings.ToLower(strings.Trim(out.Text, " .\"'\n"))

	for _, category := range categories {
		if strings.EqualFold(reply, category) {
			setCategory(out, category)

			return
		}
	}

	for _, category := range categories {
		if strings.Contains(reply, strings.ToLower(category)) {
			setCategory(out, category)

			return
		}
	}

	out.Data["category"] = nil
	out.Port = models.PortDefault
}

func setCategory(out *models.NodeOutput, category string) {
	out.Data["category"] = category
	out.Port = strings.ToLower(category)
}

// extract parses the JSON object in the reply into data.fields.
func extract(out *models.NodeOutput) {
	raw := strings.TrimSpace(out.Text)
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		out.Data["parseError"] = err.Error()

		return
	}

	out.Data["fields"] = fields
}
