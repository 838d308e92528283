package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKClient_CreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
		assert.NotNil(t, body["system"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `["embroidered lawn", "kurta"]`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":  40,
				"output_tokens": 12,
			},
		})
	}))
	defer ts.Close()

	client := NewClient("test-key", option.WithBaseURL(ts.URL))
	temp := 0.0
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   256,
		System:      []SystemBlock{{Text: "You extract SEO keywords."}},
		Messages:    []Message{{Role: "user", Content: "Descriptions..."}},
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `["embroidered lawn", "kurta"]`, resp.Text())
	assert.Equal(t, int64(40), resp.Usage.InputTokens)
	assert.Equal(t, int64(12), resp.Usage.OutputTokens)
}

func TestSDKClient_CreateMessage_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type": "error",
			"error": map[string]any{
				"type":    "invalid_request_error",
				"message": "max_tokens too large",
			},
		})
	}))
	defer ts.Close()

	client := NewClient("test-key", option.WithBaseURL(ts.URL))
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Hello"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: "Here are the keywords: "},
		{Type: "tool_use"},
		{Type: "text", Text: `["denim"]`},
	}}
	assert.Equal(t, `Here are the keywords: ["denim"]`, resp.Text())
}

func TestNewParams(t *testing.T) {
	temp := 0.2
	params := newParams(MessageRequest{
		Model:     "claude-haiku-4-5",
		MaxTokens: 256,
		System:    []SystemBlock{{Text: "one"}, {Text: "two"}},
		Messages: []Message{
			{Role: "user", Content: "q"},
			{Role: "assistant", Content: "a"},
			{Role: "system-ish", Content: "defaults to user"},
		},
		Temperature: &temp,
	})

	assert.Equal(t, int64(256), params.MaxTokens)
	require.Len(t, params.Messages, 3)
	require.Len(t, params.System, 2)
	assert.Equal(t, "two", params.System[1].Text)
}

func TestNewParams_NoSystem(t *testing.T) {
	params := newParams(MessageRequest{Model: "claude-haiku-4-5", MaxTokens: 10})
	assert.Empty(t, params.System)
	assert.Empty(t, params.Messages)
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	// input: 1M * $0.80/MTok, output: 1M * $4.00/MTok
	assert.InDelta(t, 4.80, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
	assert.InDelta(t, 18.00, usage.EstimateCost("claude-sonnet-4-5-20250929"), 0.001)
	assert.InDelta(t, 4.80, usage.EstimateCost("claude-haiku-4-5"), 0.001)
	assert.Equal(t, 0.0, usage.EstimateCost("unknown-model"))
	assert.Equal(t, 0.0, TokenUsage{}.EstimateCost("claude-haiku-4-5-20251001"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("claude-haiku-4-5-20251001", "keywords")
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("unknown-model", "keywords")
	})
}
