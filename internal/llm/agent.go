package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	lctools "github.com/tmc/langchaingo/tools"
	"github.com/williammiras/dash/internal/metrics"
	"github.com/williammiras/dash/internal/models"
	"github.com/williammiras/dash/internal/prompt"
	"github.com/williammiras/dash/internal/tools"
	"github.com/williammiras/dash/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrMaxIterations = errors.New("agent stopped due to iteration limit")
	ErrEmptyResponse = errors.New("empty response from LLM")
	ErrToolFailed    = errors.New("tool call failed")
)

const tracerName = "github.com/williammiras/dash/internal/llm"

// ToolAgent drives a tool-calling chat model until it produces an answer without tool calls.
type ToolAgent struct {
	model         llms.Model
	tools         *tools.Registry
	prompt        prompt.Template
	maxIterations int
	temperature   float64
	tracer        trace.Tracer
}

type ToolAgentOption func(*ToolAgent)

func WithMaxIterations(n int) ToolAgentOption {
	return func(a *ToolAgent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

func WithTemperature(t float64) ToolAgentOption {
	return func(a *ToolAgent) { a.temperature = t }
}

func NewToolAgent(model llms.Model, registry *tools.Registry, tmpl prompt.Template, opts ...ToolAgentOption) *ToolAgent {
	if registry == nil {
		registry, _ = tools.NewRegistry()
	}
	a := &ToolAgent{
		model:         model,
		tools:         registry,
		prompt:        tmpl,
		maxIterations: 8,
		tracer:        otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *ToolAgent) Invoke(ctx context.Context, query string, history []models.Turn) (_ *InvokeResult, err error) {
	ctx, span := a.tracer.Start(ctx, "agent.invoke", trace.WithAttributes(
		attribute.Int("dash.history_turns", len(history)),
		attribute.Int("dash.tools", a.tools.Len()),
	))
	start := time.Now()
	defer func() {
		metrics.ObserveAgent(time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	text, err := a.prompt.Render(query, history)
	if err != nil {
		return nil, err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}
	callOpts := []llms.CallOption{llms.WithTemperature(a.temperature)}
	if defs := a.toolDefinitions(); len(defs) > 0 {
		callOpts = append(callOpts, llms.WithTools(defs))
	}

	log := logger.FromContext(ctx)
	var used []string
	for i := 1; i <= a.maxIterations; i++ {
		resp, err := a.model.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			return nil, fmt.Errorf("llm call failed: %w", err)
		}
		if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
			return nil, ErrEmptyResponse
		}

		choice := resp.Choices[0]
		calls := functionCalls(choice.ToolCalls)
		if len(calls) == 0 {
			span.SetAttributes(attribute.Int("dash.iterations", i))
			return &InvokeResult{Output: choice.Content, ToolsUsed: used, Iterations: i}, nil
		}

		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		if choice.Content != "" {
			assistant.Parts = append(assistant.Parts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range calls {
			assistant.Parts = append(assistant.Parts, tc)
		}
		messages = append(messages, assistant)

		for _, tc := range calls {
			name := tc.FunctionCall.Name
			log.Debug("agent tool call", "tool", name, "iteration", i)

			output, err := a.callTool(ctx, tc)
			if err != nil {
				return nil, err
			}
			if _, known := a.tools.Get(name); known {
				used = appendUnique(used, name)
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: tc.ID,
					Name:       name,
					Content:    output,
				}},
			})
		}
	}
	return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, a.maxIterations)
}

// callTool runs one tool call. An unknown tool yields a message for the model;
// a failing tool aborts the invocation.
func (a *ToolAgent) callTool(ctx context.Context, tc llms.ToolCall) (string, error) {
	name := tc.FunctionCall.Name
	t, ok := a.tools.Get(name)
	if !ok {
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", name, strings.Join(a.tools.Names(), ", ")), nil
	}

	ctx, span := a.tracer.Start(ctx, "agent.tool", trace.WithAttributes(attribute.String("dash.tool", name)))
	defer span.End()

	output, err := t.Call(ctx, toolInput(tc.FunctionCall.Arguments))
	metrics.RecordToolCall(name, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("%w: %s: %w", ErrToolFailed, name, err)
	}
	return output, nil
}

func (a *ToolAgent) toolDefinitions() []llms.Tool {
	all := a.tools.All()
	defs := make([]llms.Tool, 0, len(all))
	for _, t := range all {
		defs = append(defs, toolDefinition(t))
	}
	return defs
}

func toolDefinition(t lctools.Tool) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Input for the tool, as described by the tool description.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// functionCalls drops tool calls without a function. Every call left gets a response,
// so the assistant message never references a call the model is not answered for.
func functionCalls(calls []llms.ToolCall) []llms.ToolCall {
	out := make([]llms.ToolCall, 0, len(calls))
	for _, tc := range calls {
		if tc.FunctionCall != nil {
			out = append(out, tc)
		}
	}
	return out
}

// toolInput extracts the query argument of an arguments object. Text that is not a
// JSON object is passed through unchanged.
func toolInput(arguments string) string {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return arguments
	}
	return args.Query
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
