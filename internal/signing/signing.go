// Package signing issues and checks HMAC-signed download links for rendered
// QR codes.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrExpired      = errors.New("signed link expired")
	ErrBadSignature = errors.New("invalid link signature")
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Sign returns the hex signature of "resultID:expiresUnix".
func (s *Signer) Sign(resultID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(fmt.Sprintf("%s:%d", resultID, expiresUnix)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Query returns the id, expires and sig parameters of a link to resultID
// that stays valid for ttl after now.
func (s *Signer) Query(resultID string, ttl time.Duration, now time.Time) url.Values {
	exp := now.Add(ttl).Unix()
	q := url.Values{}
	q.Set("id", resultID)
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("sig", s.Sign(resultID, exp))
	return q
}

// Verify checks the signature first and the expiry second, so a forged link
// is reported as forged even after it would have expired.
func (s *Signer) Verify(resultID, expires, signature string, now time.Time) error {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: expires %q", ErrBadSignature, expires)
	}
	// hmac.Equal compares in constant time.
	if !hmac.Equal([]byte(s.Sign(resultID, exp)), []byte(signature)) {
		return ErrBadSignature
	}
	if now.Unix() > exp {
		return ErrExpired
	}
	return nil
}
