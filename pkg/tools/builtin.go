package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loomctl/loom/pkg/agent"
)

// Deps bundles the collaborators builtin tool handlers call into. Each
// handler only touches the dependencies it needs; Deps exists so
// RegisterBuiltins has one parameter instead of a dozen.
type Deps struct {
	TeamID  string
	AgentID string

	Tasks        TaskStore
	Goals        GoalStore
	Chat         ChatSender
	Memory       MemoryStore
	KnowledgeBase KBSearcher
	SourceOfRecord SORStore
	Workspace    FileStore
	Approvals    ApprovalRequester
}

type TaskStore interface {
	CreateTask(ctx context.Context, title, description, priority string) (string, error)
	UpdateTaskStatus(ctx context.Context, taskID, status string) error
	ListTasks(ctx context.Context, status string) (string, error)
}

type GoalStore interface {
	ListGoals(ctx context.Context) (string, error)
}

type ChatSender interface {
	SendMessage(ctx context.Context, channelID, content string) error
}

type MemoryStore interface {
	AddMemory(ctx context.Context, content string) error
}

type KBSearcher interface {
	Search(ctx context.Context, query string, topK int) (string, error)
}

type SORStore interface {
	ReadRows(ctx context.Context, tableName string) (string, error)
	WriteRow(ctx context.Context, tableName string, data map[string]any) (string, error)
}

type FileStore interface {
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	ListFiles(ctx context.Context, path string) (string, error)
}

type ApprovalRequester interface {
	RequestApproval(ctx context.Context, actionType, justification string, riskLevel string) (string, error)
}

// RegisterBuiltins wires the fixed catalog of tools every agent can be
// granted: think, task management, messaging, file access, knowledge-base
// search, memory, source-of-record access, and approval requests.
func RegisterBuiltins(r *Registry, d Deps) {
	r.Register(agent.ToolDefinition{
		Name:        "think",
		Description: "Record a private reasoning note; has no side effects.",
		Schema: objSchema(map[string]any{
			"thought": strProp(""),
		}, "thought"),
	}, func(ctx context.Context, args map[string]any) (string, error) {
		return "noted", nil
	})

	if d.Tasks != nil {
		r.Register(agent.ToolDefinition{
			Name:        "task_create",
			Description: "Create a new task.",
			Schema: objSchema(map[string]any{
				"title":       strProp(""),
				"description": strProp(""),
				"priority":    strProp("one of low, medium, high, urgent"),
			}, "title"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			title, _ := args["title"].(string)
			desc, _ := args["description"].(string)
			priority, _ := args["priority"].(string)
			id, err := d.Tasks.CreateTask(ctx, title, desc, priority)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("created task %s", id), nil
		})

		r.Register(agent.ToolDefinition{
			Name:        "task_update_status",
			Description: "Update a task's status.",
			Schema: objSchema(map[string]any{
				"task_id": strProp(""),
				"status":  strProp("one of backlog, todo, in_progress, review, done"),
			}, "task_id", "status"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			taskID, _ := args["task_id"].(string)
			status, _ := args["status"].(string)
			if err := d.Tasks.UpdateTaskStatus(ctx, taskID, status); err != nil {
				return "", err
			}
			return "status updated", nil
		})

		r.Register(agent.ToolDefinition{
			Name:        "task_list",
			Description: "List tasks, optionally filtered by status.",
			Schema: objSchema(map[string]any{
				"status": strProp(""),
			}),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			status, _ := args["status"].(string)
			return d.Tasks.ListTasks(ctx, status)
		})
	}

	if d.Goals != nil {
		r.Register(agent.ToolDefinition{
			Name:        "goal_list",
			Description: "List the team's goals and their progress.",
			Schema:      objSchema(map[string]any{}),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			return d.Goals.ListGoals(ctx)
		})
	}

	if d.Chat != nil {
		r.Register(agent.ToolDefinition{
			Name:        "send_message",
			Description: "Send a chat message to a channel.",
			Schema: objSchema(map[string]any{
				"channel_id": strProp(""),
				"content":    strProp(""),
			}, "channel_id", "content"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			channelID, _ := args["channel_id"].(string)
			content, _ := args["content"].(string)
			if err := d.Chat.SendMessage(ctx, channelID, content); err != nil {
				return "", err
			}
			return "message sent", nil
		})
	}

	if d.Memory != nil {
		r.Register(agent.ToolDefinition{
			Name:        "add_memory",
			Description: "Persist a durable memory for future runs.",
			Schema: objSchema(map[string]any{
				"content": strProp(""),
			}, "content"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			content, _ := args["content"].(string)
			if err := d.Memory.AddMemory(ctx, content); err != nil {
				return "", err
			}
			return "memory saved", nil
		})
	}

	if d.KnowledgeBase != nil {
		r.Register(agent.ToolDefinition{
			Name:        "search_kb",
			Description: "Search the knowledge base for relevant passages.",
			Schema: objSchema(map[string]any{
				"query": strProp(""),
				"top_k": map[string]any{"type": "integer"},
			}, "query"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			topK := 5
			if v, ok := args["top_k"].(float64); ok {
				topK = int(v)
			}
			return d.KnowledgeBase.Search(ctx, query, topK)
		})
	}

	if d.SourceOfRecord != nil {
		r.Register(agent.ToolDefinition{
			Name:        "sor_read",
			Description: "Read all rows from a source-of-record table.",
			Schema: objSchema(map[string]any{
				"table": strProp(""),
			}, "table"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			table, _ := args["table"].(string)
			return d.SourceOfRecord.ReadRows(ctx, table)
		})

		r.Register(agent.ToolDefinition{
			Name:        "sor_write",
			Description: "Insert a row into a source-of-record table.",
			Schema: objSchema(map[string]any{
				"table": strProp(""),
				"data":  map[string]any{"type": "object"},
			}, "table", "data"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			table, _ := args["table"].(string)
			data, _ := args["data"].(map[string]any)
			return d.SourceOfRecord.WriteRow(ctx, table, data)
		})
	}

	if d.Workspace != nil {
		r.Register(agent.ToolDefinition{
			Name:        "read_file",
			Description: "Read a file from the agent's workspace.",
			Schema:      objSchema(map[string]any{"path": strProp("")}, "path"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			return d.Workspace.ReadFile(ctx, path)
		})

		r.Register(agent.ToolDefinition{
			Name:        "write_file",
			Description: "Write a file in the agent's workspace.",
			Schema: objSchema(map[string]any{
				"path":    strProp(""),
				"content": strProp(""),
			}, "path", "content"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			content, _ := args["content"].(string)
			if err := d.Workspace.WriteFile(ctx, path, content); err != nil {
				return "", err
			}
			return "file written", nil
		})

		r.Register(agent.ToolDefinition{
			Name:        "list_files",
			Description: "List files under a workspace path.",
			Schema:      objSchema(map[string]any{"path": strProp("")}),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			path, _ := args["path"].(string)
			return d.Workspace.ListFiles(ctx, path)
		})
	}

	if d.Approvals != nil {
		r.Register(agent.ToolDefinition{
			Name:        "request_approval",
			Description: "Ask a human to approve a risky action before taking it.",
			Schema: objSchema(map[string]any{
				"action_type":   strProp(""),
				"justification": strProp(""),
				"risk_level":    strProp("one of low, medium, high, critical"),
			}, "action_type", "justification", "risk_level"),
		}, func(ctx context.Context, args map[string]any) (string, error) {
			actionType, _ := args["action_type"].(string)
			justification, _ := args["justification"].(string)
			riskLevel, _ := args["risk_level"].(string)
			return d.Approvals.RequestApproval(ctx, actionType, justification, riskLevel)
		})
	}
}

func objSchema(props map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": true,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func strProp(description string) map[string]any {
	p := map[string]any{"type": "string"}
	if description != "" {
		p["description"] = description
	}
	return p
}

var _ = json.Marshal
