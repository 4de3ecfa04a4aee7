// Package model contains simple struct definitions shared across packages.
package model

import (
	"time"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// ResultStatus describes how far an upload got through the pipeline.
type ResultStatus string

const (
	StatusComplete ResultStatus = "complete"
	// StatusInvalid means the document was read but its data cannot form a
	// payment order; the extracted text and record are still kept.
	StatusInvalid ResultStatus = "invalid"
	StatusFailed  ResultStatus = "failed"
)

// Result is one processed upload as shown on the result page and returned
// by the results API.
type Result struct {
	ID        string       `json:"id"`
	FileName  string       `json:"fileName"`
	Size      int64        `json:"size"`
	Status    ResultStatus `json:"status"`
	Text      string       `json:"text,omitempty"`
	Record    *upn.Record  `json:"record,omitempty"`
	Payload   string       `json:"payload,omitempty"`
	Checksum  int          `json:"checksum,omitempty"`
	Tolerated []string     `json:"tolerated,omitempty"`
	Cached    bool         `json:"cached"`
	// PNG is served through signed download links only.
	PNG       []byte    `json:"-"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasSymbol reports whether a QR image is available for download.
func (r *Result) HasSymbol() bool {
	return len(r.PNG) > 0
}
