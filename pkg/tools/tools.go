// Package tools implements the registry of actions an agent's ReAct loop
// can invoke: task/goal CRUD, messaging, file access, knowledge-base
// search, memory, source-of-record rows, and approval requests. Every tool
// call's arguments are validated against a JSON Schema before the handler
// runs; a validation failure or an unknown tool name becomes an error
// ToolResult, never a Go error, so the model sees it as an observation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/loomctl/loom/pkg/agent"
)

// Handler executes a validated tool call and returns its textual result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool bundles a definition, its compiled schema, and its handler.
type Tool struct {
	Definition agent.ToolDefinition
	schema     *jsonschema.Schema
	handler    Handler
}

// Registry holds the tools available to one agent's run. Built fresh per
// run by the caller (pkg/agent/controller's owner) from the subset the
// agent is permitted to use.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]*Tool{}}
}

// Register compiles def.Schema and adds the tool under def.Name. It panics
// on an invalid schema, since schemas are static and any failure is a
// programming error caught at startup, not a runtime condition.
func (r *Registry) Register(def agent.ToolDefinition, handler Handler) {
	schemaJSON, err := json.Marshal(def.Schema)
	if err != nil {
		panic(fmt.Sprintf("tools: marshal schema for %s: %v", def.Name, err))
	}
	compiler := jsonschema.NewCompiler()
	resourceName := def.Name + ".json"
	if err := compiler.AddResource(resourceName, strings.NewReader(string(schemaJSON))); err != nil {
		panic(fmt.Sprintf("tools: add schema resource for %s: %v", def.Name, err))
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		panic(fmt.Sprintf("tools: compile schema for %s: %v", def.Name, err))
	}

	r.tools[def.Name] = &Tool{Definition: def, schema: schema, handler: handler}
	r.order = append(r.order, def.Name)
}

var _ agent.ToolExecutor = (*Registry)(nil)

func (r *Registry) ListTools(ctx context.Context) ([]agent.ToolDefinition, error) {
	defs := make([]agent.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs, nil
}

func (r *Registry) Execute(ctx context.Context, call agent.ToolCall) (*agent.ToolResult, error) {
	tool, ok := r.tools[call.Name]
	if !ok {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("unknown tool %q", call.Name),
			IsError: true,
		}, nil
	}

	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return &agent.ToolResult{
				CallID:  call.ID,
				Name:    call.Name,
				Content: fmt.Sprintf("arguments are not valid JSON: %s", err),
				IsError: true,
			}, nil
		}
	} else {
		args = map[string]any{}
	}

	if err := tool.schema.Validate(args); err != nil {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("arguments failed schema validation: %s", err),
			IsError: true,
		}, nil
	}

	content, err := tool.handler(ctx, args)
	if err != nil {
		return &agent.ToolResult{
			CallID:  call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}, nil
	}
	return &agent.ToolResult{CallID: call.ID, Name: call.Name, Content: content}, nil
}
