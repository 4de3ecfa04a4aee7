// Package botcheck verifies Botpoison challenge solutions submitted with the
// upload form.
package botcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRejected means the solution was checked and refused, or could not be
// checked at all.
var ErrRejected = errors.New("bot check failed")

// DefaultVerifyURL is the Botpoison verification endpoint.
const DefaultVerifyURL = "https://api.botpoison.com/verify"

// Verifier decides whether a form submission came from a person.
type Verifier interface {
	Verify(ctx context.Context, solution string) error
}

// Disabled accepts every submission. It is meant for local development.
type Disabled struct{}

func (Disabled) Verify(context.Context, string) error { return nil }

// Botpoison checks solutions against the Botpoison API.
type Botpoison struct {
	secretKey string
	verifyURL string
	client    *http.Client
}

// NewBotpoison returns a verifier for secretKey. An empty verifyURL selects
// DefaultVerifyURL.
func NewBotpoison(secretKey, verifyURL string, timeout time.Duration) *Botpoison {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Botpoison{
		secretKey: secretKey,
		verifyURL: verifyURL,
		client:    &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	SecretKey string `json:"secretKey"`
	Solution  string `json:"solution"`
}

type verifyResponse struct {
	OK bool `json:"ok"`
}

// Verify returns nil only when the API answers {"ok": true}. Missing
// solutions, transport failures and unexpected replies all yield ErrRejected.
func (b *Botpoison) Verify(ctx context.Context, solution string) error {
	if solution == "" {
		return fmt.Errorf("%w: missing solution", ErrRejected)
	}
	body, err := json.Marshal(verifyRequest{SecretKey: b.secretKey, Solution: solution})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrRejected, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.verifyURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrRejected, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	defer resp.Body.Close()

	var out verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&out); err != nil {
		return fmt.Errorf("%w: decode response (status %d): %v", ErrRejected, resp.StatusCode, err)
	}
	if !out.OK {
		return fmt.Errorf("%w: solution not accepted", ErrRejected)
	}
	return nil
}
