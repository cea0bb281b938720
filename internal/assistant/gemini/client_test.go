package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/oceandata/internal/assistant/domain"
	"github.com/smallbiznis/oceandata/internal/config"
)

const testURL = "https://gemini.test/v1beta/models/test-model:generateContent"

func newTestClient(t *testing.T, retries int) *Client {
	t.Helper()
	c := NewClient(config.GeminiConfig{
		APIKey:     "secret",
		Model:      "test-model",
		BaseURL:    "https://gemini.test/v1beta/",
		MaxRetries: retries,
	}, zap.NewNop())
	c.http.RetryWaitMin = 0
	c.http.RetryWaitMax = 0

	httpmock.ActivateNonDefault(c.http.HTTPClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func TestCompleteSendsPromptAndImage(t *testing.T) {
	c := newTestClient(t, 0)

	var captured generateRequest
	httpmock.RegisterResponder(http.MethodPost, testURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "secret", req.Header.Get(apiKeyHeader))
		assert.Empty(t, req.URL.Query().Get("key"))
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		return httpmock.NewJsonResponse(http.StatusOK, textResponse("  A clownfish.  "))
	})

	text, err := c.Complete(context.Background(), domain.Prompt{
		System: "You are Aqua.",
		Text:   "What is this?",
		Image:  &domain.InlineImage{MimeType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})
	require.NoError(t, err)
	assert.Equal(t, "A clownfish.", text)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You are Aqua.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	require.Len(t, captured.Contents[0].Parts, 2)
	assert.Equal(t, "What is this?", captured.Contents[0].Parts[0].Text)
	require.NotNil(t, captured.Contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", captured.Contents[0].Parts[1].InlineData.MimeType)
	assert.Equal(t, "iVBORw==", captured.Contents[0].Parts[1].InlineData.Data)
}

func TestCompleteRetriesServerErrors(t *testing.T) {
	c := newTestClient(t, 2)

	calls := 0
	httpmock.RegisterResponder(http.MethodPost, testURL, func(*http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, "busy"), nil
		}
		return httpmock.NewJsonResponse(http.StatusOK, textResponse("ok"))
	})

	text, err := c.Complete(context.Background(), domain.Prompt{Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, calls)
}

func TestCompleteHTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"bad_request", http.StatusBadRequest},
		{"forbidden", http.StatusForbidden},
		{"internal_server_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, 0)
			httpmock.RegisterResponder(http.MethodPost, testURL,
				httpmock.NewStringResponder(tt.status, `{"error":{"message":"nope"}}`))

			_, err := c.Complete(context.Background(), domain.Prompt{Text: "hi"})
			assert.ErrorIs(t, err, domain.ErrUpstream)
		})
	}
}

func TestCompleteEmptyText(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewStringResponder(http.StatusOK, `{"candidates":[]}`))

	_, err := c.Complete(context.Background(), domain.Prompt{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestCompleteMalformedBody(t *testing.T) {
	c := newTestClient(t, 0)
	httpmock.RegisterResponder(http.MethodPost, testURL,
		httpmock.NewStringResponder(http.StatusOK, `not json`))

	_, err := c.Complete(context.Background(), domain.Prompt{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrUpstream)
}

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	completer := New(config.Config{}, zap.NewNop())
	_, err := completer.Complete(context.Background(), domain.Prompt{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}
