package botcheck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotpoisonVerify(t *testing.T) {
	var got verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		ok := got.Solution == "good"
		_ = json.NewEncoder(w).Encode(verifyResponse{OK: ok})
	}))
	defer srv.Close()

	v := NewBotpoison("bp-secret", srv.URL, time.Second)
	require.NoError(t, v.Verify(context.Background(), "good"))
	assert.Equal(t, "bp-secret", got.SecretKey)

	assert.ErrorIs(t, v.Verify(context.Background(), "bad"), ErrRejected)
}

func TestBotpoisonFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error page", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{"missing ok", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			v := NewBotpoison("bp-secret", srv.URL, 50*time.Millisecond)
			assert.ErrorIs(t, v.Verify(context.Background(), "solution"), ErrRejected)
		})
	}
}

func TestBotpoisonMissingSolution(t *testing.T) {
	v := NewBotpoison("bp-secret", "http://127.0.0.1:1", time.Second)
	assert.ErrorIs(t, v.Verify(context.Background(), ""), ErrRejected)
}

func TestDisabled(t *testing.T) {
	var v Verifier = Disabled{}
	assert.NoError(t, v.Verify(context.Background(), ""))
}
