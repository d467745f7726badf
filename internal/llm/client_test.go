package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Stream      bool    `json:"stream"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestOpenAIClient_Complete(t *testing.T) {
	var got capturedRequest
	var authHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [
				{"index": 0, "message": {"role": "assistant", "content": "Breathe slowly."}, "finish_reason": "stop"},
				{"index": 1, "message": {"role": "assistant", "content": "Second"}, "finish_reason": "stop"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/v1/", "sk-test", "gpt-4o-mini", 0.5, 5*time.Second, zap.NewNop())
	out, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a helpful AI psychologist."},
		{Role: RoleUser, Content: "I feel anxious"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Breathe slowly.", "Second"}, out.Choices)
	assert.Equal(t, "Bearer sk-test", authHeader)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.InDelta(t, 0.5, got.Temperature, 1e-6)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "I feel anxious", got.Messages[1].Content)
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-test", "gpt-4o-mini", 0.7, 5*time.Second, nil)
	out, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hola"}})
	require.NoError(t, err)
	assert.Empty(t, out.Choices)
}

func TestOpenAIClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL, "sk-test", "gpt-4o-mini", 0.7, 5*time.Second, zap.NewNop())
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hola"}})
	assert.Error(t, err)
}

func TestOpenAIClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewOpenAIClient(url, "sk-test", "gpt-4o-mini", 0.7, time.Second, zap.NewNop())
	_, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hola"}})
	assert.Error(t, err)
}

func TestMockClient_CountsCalls(t *testing.T) {
	m := NewMockClient("ok")
	_, _ = m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "a"}})
	_, _ = m.Complete(context.Background(), []Message{{Role: RoleUser, Content: "b"}})

	assert.Equal(t, 2, m.Calls())
	assert.Equal(t, "b", m.LastMessages()[0].Content)
}
