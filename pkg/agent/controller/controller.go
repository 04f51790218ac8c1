// Package controller implements the Reason+Act iteration loop: call the
// model with the effective tool schema set, execute whatever tool calls
// come back natively (never by parsing the assistant's free text), and
// either feed the results back as observations or return a final answer,
// bounded by a maximum iteration count and a consecutive-failure abort
// threshold.
package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomctl/loom/pkg/agent"
	"github.com/loomctl/loom/pkg/apperr"
)

const (
	defaultMaxIterations = 10
	maxCallRetries       = 2
	initialBackoff       = 200 * time.Millisecond
)

// Run executes one ReAct loop to completion, to exhaustion of iterations, to
// an approval gate that suspends the run, or to an insufficient-credits
// stop.
func Run(ctx context.Context, execCtx *agent.ExecutionContext) (*agent.ExecutionResult, error) {
	maxIter := execCtx.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}

	tools, err := execCtx.ToolExecutor.ListTools(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "list tools")
	}

	messages := []agent.ConversationMessage{
		{Role: agent.RoleSystem, Content: execCtx.SystemPrompt},
	}

	state := &agent.IterationState{MaxIterations: maxIter}
	result := &agent.ExecutionResult{}

	for iteration := 0; iteration < maxIter; iteration++ {
		state.CurrentIteration = iteration + 1
		result.Iterations = state.CurrentIteration

		if state.ShouldAbort() {
			result.Status = agent.ExecutionStatusFailed
			result.FinalAnswer = state.LastErrorMessage
			return result, nil
		}

		resp, err := callModel(ctx, execCtx, messages, tools)
		if err != nil {
			if apperr.KindOf(err) == apperr.InsufficientCredits {
				result.Status = agent.ExecutionStatusInsufficientCredits
				result.FinalAnswer = err.Error()
				return result, nil
			}
			state.RecordFailure(err.Error())
			messages = append(messages, agent.ConversationMessage{
				Role: agent.RoleUser, Content: FormatErrorObservation(err),
			})
			continue
		}
		result.InputTokens += resp.InputTokens
		result.OutputTokens += resp.OutputTokens
		state.RecordSuccess()

		if len(resp.ToolCalls) == 0 {
			result.Status = agent.ExecutionStatusCompleted
			result.FinalAnswer = resp.Text
			return result, nil
		}

		messages = append(messages, agent.ConversationMessage{Role: agent.RoleAssistant, Content: resp.Text})

		for _, call := range resp.ToolCalls {
			observation, suspended, err := executeGatedTool(ctx, execCtx, call)
			if err != nil {
				return nil, err
			}
			if suspended {
				result.Status = agent.ExecutionStatusAwaitingApproval
				result.FinalAnswer = observation
				return result, nil
			}
			messages = append(messages, agent.ConversationMessage{Role: agent.RoleTool, Content: observation})
		}
	}

	return forceConclusion(ctx, execCtx, messages)
}

// callModel deducts credits for the iteration (if accounting is enabled),
// performs the provider call with retry-on-retryable-error, and refunds the
// deduction if every attempt ultimately fails.
func callModel(ctx context.Context, execCtx *agent.ExecutionContext, messages []agent.ConversationMessage, tools []agent.ToolDefinition) (*agent.ChatResponse, error) {
	if execCtx.SkipCredits || execCtx.Credits == nil {
		return callWithRetry(ctx, execCtx, messages, tools)
	}

	correlationID := uuid.NewString()
	cost := execCtx.CreditsPerCall
	if cost <= 0 {
		cost = 1
	}
	if err := execCtx.Credits.Deduct(ctx, execCtx.TeamID, &execCtx.AgentID, cost, correlationID); err != nil {
		return nil, err
	}

	resp, err := callWithRetry(ctx, execCtx, messages, tools)
	if err != nil {
		if refundErr := execCtx.Credits.Refund(ctx, execCtx.TeamID, &execCtx.AgentID, cost, correlationID); refundErr != nil {
			slog.Error("failed to refund credits after model call failure", "error", refundErr, "correlation_id", correlationID)
		}
		return nil, err
	}
	return resp, nil
}

// callWithRetry retries a retryable ProviderError up to maxCallRetries times
// with exponential backoff; a non-retryable error or context cancellation
// fails the iteration immediately.
func callWithRetry(ctx context.Context, execCtx *agent.ExecutionContext, messages []agent.ConversationMessage, tools []agent.ToolDefinition) (*agent.ChatResponse, error) {
	req := agent.ChatRequest{
		ModelID:          execCtx.ModelID,
		Messages:         messages,
		Tools:            tools,
		FallbackEndpoint: execCtx.FallbackEndpoint,
		FallbackModel:    execCtx.FallbackModel,
		FallbackAPIKey:   execCtx.FallbackAPIKey,
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt <= maxCallRetries; attempt++ {
		resp, err := execCtx.ModelClient.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !apperr.IsRetryable(err) || attempt == maxCallRetries {
			return nil, err
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}

// executeGatedTool validates and executes a single tool call, checking the
// approval gate first whenever classifyRisk gives the call a risk level.
// suspended=true means a pending approval was just created and the run must
// stop here. Nothing resumes the run; a later run that makes the same call
// passes the gate once the approval has been granted.
func executeGatedTool(ctx context.Context, execCtx *agent.ExecutionContext, call agent.ToolCall) (observation string, suspended bool, err error) {
	riskLevel := classifyRisk(call.Name)
	if riskLevel != "" && execCtx.Approvals != nil {
		detail := map[string]any{"arguments": call.Arguments}
		approved, waitCreated, err := execCtx.Approvals.RequireApproval(ctx, execCtx.TeamID, execCtx.AgentID, call.Name, detail, riskLevel)
		if err != nil {
			return "", false, err
		}
		if waitCreated {
			return FormatApprovalPending(call.Name), true, nil
		}
		if !approved {
			return FormatApprovalRejected(call.Name), false, nil
		}
	}

	result, err := execCtx.ToolExecutor.Execute(ctx, call)
	if err != nil {
		return "", false, apperr.Wrap(apperr.Internal, err, "execute tool %s", call.Name)
	}
	return FormatToolObservation(result.Name, result.Content, result.IsError), false, nil
}

// classifyRisk reports the risk_level a tool call needs approval at, or ""
// if the action never requires approval. delete_task and delete_sor_table
// are high risk; send_message, request_approval, sor_write, sor_delete_row
// and write_file are medium risk; every other tool needs none.
func classifyRisk(action string) string {
	switch action {
	case "send_message", "request_approval", "sor_write", "sor_delete_row", "write_file":
		return "medium"
	case "delete_task", "delete_sor_table":
		return "high"
	default:
		return ""
	}
}

// forceConclusion is reached when max_iterations is exhausted without a
// final answer; the loop asks for one last, tool-free response.
func forceConclusion(ctx context.Context, execCtx *agent.ExecutionContext, messages []agent.ConversationMessage) (*agent.ExecutionResult, error) {
	messages = append(messages, agent.ConversationMessage{
		Role:    agent.RoleUser,
		Content: "You have reached the maximum number of iterations. Respond now with your best final answer; no further tool calls will be executed.",
	})
	resp, err := callWithRetry(ctx, execCtx, messages, nil)
	if err != nil {
		return &agent.ExecutionResult{Status: agent.ExecutionStatusFailed, FinalAnswer: "I hit my step budget."}, nil
	}
	answer := resp.Text
	if answer == "" {
		answer = "I hit my step budget."
	}
	return &agent.ExecutionResult{
		Status:       agent.ExecutionStatusCompleted,
		FinalAnswer:  answer,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
