package modelrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/agent"
)

func TestChatCompletion_SendsToolSchemaAndParsesToolCalls(t *testing.T) {
	var captured chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "", "tool_calls": [
				{"id": "call-1", "type": "function", "function": {"name": "search_kb", "arguments": "{\"query\":\"x\"}"}}
			]}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5}
		}`))
	}))
	defer srv.Close()

	r := New(Config{Mode: ModeHosted, ProviderURL: srv.URL, HTTPClient: srv.Client()})

	resp, err := r.ChatCompletion(context.Background(), agent.ChatRequest{
		ModelID:  "gpt-test",
		Messages: []agent.ConversationMessage{{Role: agent.RoleUser, Content: "hi"}},
		Tools: []agent.ToolDefinition{
			{Name: "search_kb", Description: "search the kb", Schema: map[string]any{"type": "object"}},
		},
	})
	require.NoError(t, err)

	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "function", captured.Tools[0].Type)
	assert.Equal(t, "search_kb", captured.Tools[0].Function.Name)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_kb", resp.ToolCalls[0].Name)
	assert.Equal(t, "call-1", resp.ToolCalls[0].ID)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, 5, resp.OutputTokens)
}

func TestChatCompletion_FallsBackOnRetryableProviderError(t *testing.T) {
	primaryCalls := 0
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer fallback.Close()

	r := New(Config{Mode: ModeHosted, ProviderURL: primary.URL, HTTPClient: primary.Client()})

	resp, err := r.ChatCompletion(context.Background(), agent.ChatRequest{
		ModelID:          "gpt-test",
		Messages:         []agent.ConversationMessage{{Role: agent.RoleUser, Content: "hi"}},
		FallbackEndpoint: fallback.URL,
		FallbackModel:    "gpt-fallback",
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, primaryCalls)
}

func TestChatCompletion_NonRetryable4xxDoesNotFallBack(t *testing.T) {
	fallbackCalled := false
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer primary.Close()

	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalled = true
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "ok"}}]}`))
	}))
	defer fallback.Close()

	r := New(Config{Mode: ModeHosted, ProviderURL: primary.URL, HTTPClient: primary.Client()})

	_, err := r.ChatCompletion(context.Background(), agent.ChatRequest{
		ModelID:          "gpt-test",
		Messages:         []agent.ConversationMessage{{Role: agent.RoleUser, Content: "hi"}},
		FallbackEndpoint: fallback.URL,
	})
	require.Error(t, err)
	assert.False(t, fallbackCalled, "a non-retryable rejection must not fall back")
}

func TestEmbed_SplitsIntoBatchesPreservingOrder(t *testing.T) {
	var seenInputs [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		seenInputs = append(seenInputs, req.Input)

		data := make([]struct {
			Embedding []float64 `json:"embedding"`
		}, len(req.Input))
		for i, text := range req.Input {
			data[i].Embedding = []float64{float64(len(text))}
		}
		resp := embeddingResponse{Data: data}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	r := New(Config{Mode: ModeHosted, ProviderURL: srv.URL, HTTPClient: srv.Client(), EmbedBatchMax: 2})

	out, err := r.Embed(context.Background(), "embed-model", []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []float64{1}, out[0])
	assert.Equal(t, []float64{2}, out[1])
	assert.Equal(t, []float64{3}, out[2])
	assert.Len(t, seenInputs, 2, "three texts with a batch max of two must split into two requests")
}

func TestSummarize_SplitsOnDelimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "short summary\n---L1---\nlonger summary"}}]}`))
	}))
	defer srv.Close()

	r := New(Config{Mode: ModeHosted, ProviderURL: srv.URL, HTTPClient: srv.Client()})

	l0, l1, err := r.Summarize(context.Background(), "some document")
	require.NoError(t, err)
	assert.Equal(t, "short summary", l0)
	assert.Equal(t, "longer summary", l1)
}
