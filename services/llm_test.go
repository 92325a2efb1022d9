package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tripmate/config"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestLLMClientGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"llama3.1-8b",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Day 1: Louvre"}}]}`)
	}))
	defer srv.Close()

	c := NewLLMClient(config.LLM{APIKey: "test-key", Model: "llama3.1-8b", BaseURL: srv.URL}, zap.NewNop())
	text := c.Generate(context.Background(), "Plan Paris", "You are a planner", 0.7)

	assert.Equal(t, "Day 1: Louvre", text)
	assert.Equal(t, "llama3.1-8b", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "You are a planner", got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "Plan Paris", got.Messages[1].Content)
}

func TestLLMClientOmitsEmptySystemPrompt(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer srv.Close()

	c := NewLLMClient(config.LLM{APIKey: "k", Model: "m", BaseURL: srv.URL + "/"}, zap.NewNop())
	assert.Equal(t, "ok", c.Generate(context.Background(), "hi", "", 0.2))
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestLLMClientFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":{"message":"boom"}}`)
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewLLMClient(config.LLM{APIKey: "k", Model: "m", BaseURL: srv.URL}, zap.NewNop())
			assert.Equal(t, FallbackResponse, c.Generate(context.Background(), "hi", "sys", 0.7))
		})
	}
}

func TestLLMClientWithoutKeySkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewLLMClient(config.LLM{Model: "m", BaseURL: srv.URL}, zap.NewNop())
	assert.Equal(t, FallbackResponse, c.Generate(context.Background(), "hi", "", 0.7))
	assert.Zero(t, atomic.LoadInt32(&calls))
}
