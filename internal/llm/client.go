package llm

import (
	"context"

	"github.com/williammiras/dash/internal/models"
)

// Agent is the single call boundary to the hosted reasoning and tool-use loop.
type Agent interface {
	Invoke(ctx context.Context, query string, history []models.Turn) (*InvokeResult, error)
}

// InvokeResult is the agent's final answer, unparsed.
type InvokeResult struct {
	Output     string
	ToolsUsed  []string
	Iterations int
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, query string, history []models.Turn) (*InvokeResult, error)

func (f AgentFunc) Invoke(ctx context.Context, query string, history []models.Turn) (*InvokeResult, error) {
	return f(ctx, query, history)
}
