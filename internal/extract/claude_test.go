package extract

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withAnthropicServer(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	orig := anthropicURL
	anthropicURL = srv.URL
	t.Cleanup(func() { anthropicURL = orig })
}

func TestClaudeClient_Complete(t *testing.T) {
	var got anthropicRequest
	withAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"[\"beta.\"]"}]}`))
	})

	c := NewClaudeClient("test-key", "claude-test", time.Second)
	defer c.Close()

	reply, err := c.Complete(context.Background(), "sys", "Alpha, beta.")
	require.NoError(t, err)
	assert.Equal(t, `["beta."]`, reply)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, "sys", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Alpha, beta.", got.Messages[0].Content)
}

func TestClaudeClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		withAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "2")
			http.Error(w, `{"error":"nope"}`, tt.status)
		})
		c := NewClaudeClient("k", "m", time.Second)

		_, err := c.Complete(context.Background(), "sys", "user")
		var svcErr *ServiceError
		require.True(t, errors.As(err, &svcErr), "status %d: got %v", tt.status, err)
		assert.Equal(t, "anthropic", svcErr.Provider)
		assert.Equal(t, tt.status, svcErr.StatusCode)
		assert.Equal(t, tt.retryable, svcErr.Retryable())
		assert.Equal(t, 2*time.Second, svcErr.RetryAfter)
	}
}

func TestClaudeClient_EmptyContent(t *testing.T) {
	withAnthropicServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	})
	_, err := NewClaudeClient("k", "m", time.Second).Complete(context.Background(), "s", "u")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.False(t, svcErr.Retryable())
}
