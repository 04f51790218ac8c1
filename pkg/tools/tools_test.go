package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/agent"
)

func echoDef() agent.ToolDefinition {
	return agent.ToolDefinition{
		Name:        "echo",
		Description: "echoes its message argument",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"message": map[string]any{"type": "string"}},
			"required":   []any{"message"},
		},
	}
}

func TestListTools_ReturnsDefinitionsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(echoDef(), func(ctx context.Context, args map[string]any) (string, error) { return "", nil })
	r.Register(agent.ToolDefinition{Name: "noop", Schema: map[string]any{"type": "object"}}, func(ctx context.Context, args map[string]any) (string, error) { return "", nil })

	defs, err := r.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "noop", defs[1].Name)
}

func TestExecute_UnknownToolIsErrorResultNotGoError(t *testing.T) {
	r := NewRegistry()
	result, err := r.Execute(context.Background(), agent.ToolCall{ID: "c1", Name: "missing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "unknown tool")
}

func TestExecute_MalformedArgumentsIsErrorResult(t *testing.T) {
	r := NewRegistry()
	r.Register(echoDef(), func(ctx context.Context, args map[string]any) (string, error) { return "ok", nil })

	result, err := r.Execute(context.Background(), agent.ToolCall{ID: "c1", Name: "echo", Arguments: "{not json"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "not valid JSON")
}

func TestExecute_SchemaViolationIsErrorResult(t *testing.T) {
	r := NewRegistry()
	r.Register(echoDef(), func(ctx context.Context, args map[string]any) (string, error) { return "ok", nil })

	result, err := r.Execute(context.Background(), agent.ToolCall{ID: "c1", Name: "echo", Arguments: "{}"})
	require.NoError(t, err)
	assert.True(t, result.IsError, "missing required field must fail schema validation")
	assert.Contains(t, result.Content, "schema validation")
}

func TestExecute_ValidCallRunsHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(echoDef(), func(ctx context.Context, args map[string]any) (string, error) {
		return "echoed: " + args["message"].(string), nil
	})

	result, err := r.Execute(context.Background(), agent.ToolCall{ID: "c1", Name: "echo", Arguments: `{"message":"hi"}`})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "echoed: hi", result.Content)
}

func TestExecute_HandlerErrorBecomesErrorResult(t *testing.T) {
	r := NewRegistry()
	r.Register(echoDef(), func(ctx context.Context, args map[string]any) (string, error) {
		return "", assertError("boom")
	})

	result, err := r.Execute(context.Background(), agent.ToolCall{ID: "c1", Name: "echo", Arguments: `{"message":"hi"}`})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "boom")
}

type assertError string

func (e assertError) Error() string { return string(e) }
