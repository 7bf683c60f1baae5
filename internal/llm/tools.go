package llm

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ToolSpec describes a registered tool. The yaml tags feed the
// /list-tools rendering.
type ToolSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
}

// ToolCall is a single tool invocation record.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// NewToolCall constructs a synthetic call with a locally generated
// identifier, used for direct invocations that have no provider-issued
// tool-call ID.
func NewToolCall(name string, args map[string]any) ToolCall {
	return ToolCall{
		ID:        "cmd_" + uuid.NewString(),
		Name:      name,
		Arguments: args,
	}
}

// ToolRunner executes tool calls. The execution runtime itself is an
// external collaborator; the engine only needs specs and invocation.
type ToolRunner interface {
	Specs() []ToolSpec
	Invoke(ctx context.Context, call ToolCall) (string, error)
}

// ArgumentError reports invalid arguments for a tool invocation.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string {
	return e.Msg
}

// ConnectionError reports a failure reaching the service backing a tool.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}
