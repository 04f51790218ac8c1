// Package modelrouter resolves an agent's logical model id to a concrete
// provider endpoint and performs chat-completion and embedding calls,
// falling back to an agent's own endpoint/model/key when the primary
// provider call fails and a fallback is configured.
package modelrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/loomctl/loom/pkg/agent"
	"github.com/loomctl/loom/pkg/apperr"
)

// Mode selects between a centrally hosted provider and a self-hosted
// (bring-your-own-endpoint) deployment.
type Mode string

const (
	ModeHosted     Mode = "hosted"
	ModeSelfHosted Mode = "self_hosted"
)

type Config struct {
	Mode          Mode
	ProviderURL   string
	ProviderKey   string
	EmbedBatchMax int
	HTTPClient    *http.Client
	SummaryModel  string // model id used for document summarization (pkg/kb.Summarizer)
}

type Router struct {
	cfg Config
}

func New(cfg Config) *Router {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.EmbedBatchMax <= 0 {
		cfg.EmbedBatchMax = 32
	}
	if cfg.SummaryModel == "" {
		cfg.SummaryModel = "default"
	}
	return &Router{cfg: cfg}
}

var _ agent.ModelClient = (*Router)(nil)

type chatCompletionRequest struct {
	Model    string           `json:"model"`
	Messages []chatMessageDTO `json:"messages"`
	Tools    []toolDTO        `json:"tools,omitempty"`
}

type chatMessageDTO struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []toolCallDTO  `json:"tool_calls,omitempty"`
}

// toolDTO is the OpenAI-style function-tool wire shape every provider in
// the known set accepts: {type: "function", function: {name, description,
// parameters}}.
type toolDTO struct {
	Type     string      `json:"type"`
	Function functionDTO `json:"function"`
}

type functionDTO struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type toolCallDTO struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function functionCallDTO `json:"function"`
}

type functionCallDTO struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessageDTO `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func toToolDTOs(tools []agent.ToolDefinition) []toolDTO {
	if len(tools) == 0 {
		return nil
	}
	out := make([]toolDTO, len(tools))
	for i, t := range tools {
		out[i] = toolDTO{
			Type: "function",
			Function: functionDTO{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		}
	}
	return out
}

// ChatCompletion calls the resolved provider endpoint, retrying once
// against the agent's fallback endpoint/model/key on failure if one is
// configured. Network errors, 429 and 5xx responses are retryable; other
// 4xx responses are not.
func (r *Router) ChatCompletion(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error) {
	resp, err := r.call(ctx, r.cfg.ProviderURL, r.cfg.ProviderKey, req.ModelID, req.Messages, req.Tools)
	if err == nil {
		return resp, nil
	}
	if !apperr.IsRetryable(err) || req.FallbackEndpoint == "" {
		return nil, err
	}
	return r.call(ctx, req.FallbackEndpoint, req.FallbackAPIKey, req.FallbackModel, req.Messages, req.Tools)
}

func (r *Router) call(ctx context.Context, endpoint, key, model string, messages []agent.ConversationMessage, tools []agent.ToolDefinition) (*agent.ChatResponse, error) {
	if endpoint == "" {
		return nil, apperr.Misconfiguredf("model router: no provider endpoint configured")
	}

	dtoMessages := make([]chatMessageDTO, len(messages))
	for i, m := range messages {
		dtoMessages[i] = chatMessageDTO{Role: string(m.Role), Content: m.Content}
	}

	body, err := json.Marshal(chatCompletionRequest{Model: model, Messages: dtoMessages, Tools: toToolDTOs(tools)})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "marshal chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if key != "" {
		httpReq.Header.Set("Authorization", "Bearer "+key)
	}

	httpResp, err := r.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, apperr.ProviderError(true, err, "model provider unreachable")
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(httpResp.Body)

	if httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500 {
		return nil, apperr.ProviderError(true, fmt.Errorf("status %d: %s", httpResp.StatusCode, respBody), "model provider error")
	}
	if httpResp.StatusCode >= 400 {
		return nil, apperr.ProviderError(false, fmt.Errorf("status %d: %s", httpResp.StatusCode, respBody), "model provider rejected request")
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "decode chat response")
	}
	if len(parsed.Choices) == 0 {
		return nil, apperr.ProviderError(false, nil, "model provider returned no choices")
	}

	msg := parsed.Choices[0].Message
	toolCalls := make([]agent.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		toolCalls[i] = agent.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}
	}

	return &agent.ChatResponse{
		Text:         msg.Content,
		ToolCalls:    toolCalls,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
	}, nil
}

const summarizePrompt = `Summarize the following document in two parts, separated by the literal line "---L1---":
1. A one-sentence terse summary (L0).
2. A detailed multi-paragraph summary (L1).

Document:
%s`

// Summarize produces the two-level document summary pkg/kb stores alongside
// a document's chunks, satisfying pkg/kb.Summarizer. It reuses ChatCompletion
// rather than a dedicated summarization endpoint — the same provider call
// the ReAct loop makes, just with a fixed instruction instead of a tool loop.
func (r *Router) Summarize(ctx context.Context, fullText string) (l0, l1 string, err error) {
	resp, err := r.ChatCompletion(ctx, agent.ChatRequest{
		ModelID: r.cfg.SummaryModel,
		Messages: []agent.ConversationMessage{
			{Role: agent.RoleUser, Content: fmt.Sprintf(summarizePrompt, fullText)},
		},
	})
	if err != nil {
		return "", "", err
	}
	parts := bytes.SplitN([]byte(resp.Text), []byte("---L1---"), 2)
	if len(parts) != 2 {
		return resp.Text, resp.Text, nil
	}
	return string(bytes.TrimSpace(parts[0])), string(bytes.TrimSpace(parts[1])), nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe sends raw audio to the provider's transcription endpoint,
// satisfying pkg/meeting.Transcriber for voice-to-interjection input.
func (r *Router) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if r.cfg.ProviderURL == "" {
		return "", apperr.Misconfiguredf("model router: no provider endpoint configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "audio.webm")
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "build transcription request")
	}
	if _, err := part.Write(audio); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "build transcription request")
	}
	if err := mw.Close(); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "build transcription request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.ProviderURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "build transcription request")
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	if r.cfg.ProviderKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.ProviderKey)
	}

	httpResp, err := r.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return "", apperr.ProviderError(true, err, "transcription provider unreachable")
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode >= 400 {
		return "", apperr.ProviderError(httpResp.StatusCode >= 500, fmt.Errorf("status %d: %s", httpResp.StatusCode, respBody), "transcription provider error")
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "decode transcription response")
	}
	return parsed.Text, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed computes embeddings for texts in batches of at most EmbedBatchMax,
// preserving input order across batches.
func (r *Router) Embed(ctx context.Context, model string, texts []string) ([][]float64, error) {
	if r.cfg.ProviderURL == "" {
		return nil, apperr.Misconfiguredf("model router: no provider endpoint configured")
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += r.cfg.EmbedBatchMax {
		end := start + r.cfg.EmbedBatchMax
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := r.embedBatch(ctx, model, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (r *Router) embedBatch(ctx context.Context, model string, texts []string) ([][]float64, error) {
	body, err := json.Marshal(embeddingRequest{Model: model, Input: texts})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "marshal embedding request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.ProviderURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "build embedding request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.ProviderKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.ProviderKey)
	}

	httpResp, err := r.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, apperr.ProviderError(true, err, "embedding provider unreachable")
	}
	defer httpResp.Body.Close()

	respBody, _ := io.ReadAll(httpResp.Body)
	if httpResp.StatusCode >= 400 {
		return nil, apperr.ProviderError(httpResp.StatusCode >= 500, fmt.Errorf("status %d: %s", httpResp.StatusCode, respBody), "embedding provider error")
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "decode embedding response")
	}
	out := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
