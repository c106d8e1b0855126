package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePrompt() Prompt {
	return Prompt{
		EventType: "status_changed",
		Tone:      "formal",
		Title:     "Request SR-1 is now In Progress",
		Body:      "Your request about the kitchen sink is now In Progress.",
		Facts:     map[string]string{"code": "SR-1"},
	}
}

func TestGenerate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Prompt, "formal tone")
		assert.Contains(t, req.Prompt, "kitchen sink")
		assert.Equal(t, "SR-1", req.Context["code"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"text": "Title: Work has started on SR-1\nMessage: Good news, a technician is working on your sink.",
		})
	}))
	defer server.Close()

	client := NewGenAIClient(Config{BaseURL: server.URL + "/", APIKey: "secret"}, logger.NewTestLogger(t))
	title, body, err := client.Generate(context.Background(), samplePrompt())

	require.NoError(t, err)
	assert.Equal(t, "Work has started on SR-1", title)
	assert.Equal(t, "Good news, a technician is working on your sink.", body)
}

func TestGenerate_SingleLineKeepsTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "A technician is on the way."})
	}))
	defer server.Close()

	client := NewGenAIClient(Config{BaseURL: server.URL}, logger.NewNoOpLogger())
	title, body, err := client.Generate(context.Background(), samplePrompt())

	require.NoError(t, err)
	assert.Equal(t, "Request SR-1 is now In Progress", title)
	assert.Equal(t, "A technician is on the way.", body)
}

func TestGenerate_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewGenAIClient(Config{BaseURL: server.URL}, logger.NewNoOpLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.Generate(ctx, samplePrompt())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeTextGenerationTimeout, apperrors.CodeOf(err))
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"empty text", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"text": "   "})
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewGenAIClient(Config{BaseURL: server.URL}, logger.NewNoOpLogger())
			_, _, err := client.Generate(context.Background(), samplePrompt())
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeTextGenerationFailed, apperrors.CodeOf(err))
		})
	}
}

func TestSplitText(t *testing.T) {
	title, body := splitText("Hello\n\nWorld", "fallback")
	assert.Equal(t, "Hello", title)
	assert.Equal(t, "World", body)

	title, body = splitText("", "fallback")
	assert.Equal(t, "fallback", title)
	assert.Empty(t, body)
}
