package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

var sampleRecord = upn.Record{
	InvoiceNumber:   "2023-42",
	InvoiceDate:     "2021-01-01",
	DueDate:         "2021-01-31",
	TotalAmount:     "1337.80",
	Currency:        "EUR",
	BankAccount:     "SI56 1234 5678 9012 3456",
	BankName:        "Bank of Slovenia",
	IssuerName:      "Podjetje d.o.o.",
	IssuerAddress:   "Ulica 123",
	IssuerZipCode:   "1000",
	IssuerCity:      "Ljubljana",
	ServiceName:     "Programiranje",
	ReferenceNumber: "SI00 20230922",
}

func completion(t *testing.T, message map[string]any) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-2024-08-06",
		"choices": []any{map[string]any{
			"index":         0,
			"message":       message,
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	require.NoError(t, err)
	return body
}

// fakeOpenAI serves /v1/chat/completions with the given handler.
func fakeOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIExtractor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	ex, err := NewOpenAIExtractor(OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-4o-2024-08-06",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	return ex
}

func TestOpenAIExtract(t *testing.T) {
	content, err := json.Marshal(sampleRecord)
	require.NoError(t, err)

	var got struct {
		Model          string `json:"model"`
		Messages       []struct{ Role, Content string }
		ResponseFormat struct {
			Type       string `json:"type"`
			JSONSchema struct {
				Name   string          `json:"name"`
				Strict bool            `json:"strict"`
				Schema json.RawMessage `json:"schema"`
			} `json:"json_schema"`
		} `json:"response_format"`
	}
	var auth string
	ex := fakeOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completion(t, map[string]any{"role": "assistant", "content": string(content)}))
	})

	rec, err := ex.Extract(context.Background(), "PAGE 1 Racun 2023-42")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord, *rec)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "gpt-4o-2024-08-06", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, SystemPrompt, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Contains(t, got.Messages[1].Content, "PAGE 1 Racun 2023-42")
	assert.Equal(t, "json_schema", got.ResponseFormat.Type)
	assert.True(t, got.ResponseFormat.JSONSchema.Strict)
	assert.Contains(t, string(got.ResponseFormat.JSONSchema.Schema), `"reference_number"`)
}

func TestOpenAIExtractErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
		}},
		{"no choices", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
		}},
		{"refusal", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(completion(t, map[string]any{"role": "assistant", "refusal": "cannot help"}))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(completion(t, map[string]any{"role": "assistant", "content": "sorry"}))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := fakeOpenAI(t, tt.handler)
			rec, err := ex.Extract(context.Background(), "text")
			assert.Nil(t, rec)
			assert.ErrorIs(t, err, ErrExtraction)
		})
	}
}

func TestNewOpenAIExtractorRequiresKey(t *testing.T) {
	_, err := NewOpenAIExtractor(OpenAIConfig{Model: "m"}, zap.NewNop())
	assert.Error(t, err)
	_, err = NewOpenAIExtractor(OpenAIConfig{APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)
}

func TestPrompt(t *testing.T) {
	p := Prompt("INVOICE TEXT")
	assert.True(t, strings.HasSuffix(p, "```\nINVOICE TEXT\n```\n"))
	assert.Contains(t, p, "YYYY-MM-DD")
	assert.Contains(t, p, "add SI00 in front of the reference number")
	assert.NotContains(t, p, "{{TEXT}}")
}
