package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1700000000, 0)

	sig := s.Sign("result123", 1700000300)
	require.NotEmpty(t, sig)
	assert.Equal(t, sig, s.Sign("result123", 1700000300))

	tests := []struct {
		name    string
		id      string
		expires string
		sig     string
		at      time.Time
		want    error
	}{
		{"valid", "result123", "1700000300", sig, now, nil},
		{"valid at expiry", "result123", "1700000300", sig, time.Unix(1700000300, 0), nil},
		{"expired", "result123", "1700000300", sig, time.Unix(1700000301, 0), ErrExpired},
		{"wrong id", "other", "1700000300", sig, now, ErrBadSignature},
		{"wrong expiry", "result123", "42", sig, now, ErrBadSignature},
		{"garbage expiry", "result123", "soon", sig, now, ErrBadSignature},
		{"tampered signature", "result123", "1700000300", tamper(sig), now, ErrBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Verify(tt.id, tt.expires, tt.sig, tt.at)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSignerOtherSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	q := NewSigner([]byte("a")).Query("r1", time.Minute, now)
	err := NewSigner([]byte("b")).Verify(q.Get("id"), q.Get("expires"), q.Get("sig"), now)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestQuery(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	now := time.Unix(1700000000, 0)
	q := s.Query("r1", 5*time.Minute, now)

	assert.Equal(t, "r1", q.Get("id"))
	assert.Equal(t, "1700000300", q.Get("expires"))
	assert.NoError(t, s.Verify(q.Get("id"), q.Get("expires"), q.Get("sig"), now))
}

func tamper(sig string) string {
	last := "0"
	if sig[len(sig)-1] == '0' {
		last = "1"
	}
	return sig[:len(sig)-1] + last
}
