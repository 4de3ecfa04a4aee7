// Package upload reads invoice uploads from multipart requests.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// FileField is the form name of the uploaded document.
const FileField = "file"

var (
	ErrNoFile   = errors.New("missing file part")
	ErrEmpty    = errors.New("empty file")
	ErrTooLarge = errors.New("file exceeds limit")
	ErrNotPDF   = errors.New("only PDF files are supported")
)

// maxFieldBytes caps non-file form values such as the bot check solution.
const maxFieldBytes = 8 << 10

// Upload is a fully read PDF plus the plain form values sent with it.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
	Fields      map[string]string
}

// Size returns the length of the document in bytes.
func (u *Upload) Size() int64 {
	return int64(len(u.Data))
}

// Read streams the multipart body of r, keeping the first "file" part and
// every small form value. The document is sniffed and must be a PDF no
// larger than maxBytes.
func Read(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+maxFieldBytes*4)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("expecting multipart form: %w", err)
	}
	up := &Upload{Fields: map[string]string{}}
	seenFile := false
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, ErrTooLarge
			}
			return nil, fmt.Errorf("read upload: %w", err)
		}
		switch {
		case part.FormName() == FileField && !seenFile:
			seenFile = true
			if err := readFile(part, maxBytes, up); err != nil {
				part.Close()
				return nil, err
			}
		case part.FileName() == "" && part.FormName() != "":
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
			if err != nil {
				part.Close()
				return nil, fmt.Errorf("read field %s: %w", part.FormName(), err)
			}
			up.Fields[part.FormName()] = string(value)
		}
		part.Close()
	}
	if !seenFile {
		return nil, ErrNoFile
	}
	return up, nil
}

func readFile(part *multipart.Part, maxBytes int64, up *Upload) error {
	var (
		data    bytes.Buffer
		sniff   []byte
		written int64
	)
	// The 32 KiB buffer is reused for every Read call.
	buf := make([]byte, 32*1024)
	for {
		n, readErr := part.Read(buf)
		if n > 0 {
			written += int64(n)
			if written > maxBytes {
				return fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
			}
			if len(sniff) < 512 {
				chunk := n
				if remain := 512 - len(sniff); chunk > remain {
					chunk = remain
				}
				sniff = append(sniff, buf[:chunk]...)
			}
			data.Write(buf[:n])
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			var mbe *http.MaxBytesError
			if errors.As(readErr, &mbe) {
				return ErrTooLarge
			}
			return fmt.Errorf("read file: %w", readErr)
		}
	}
	if written == 0 {
		return ErrEmpty
	}
	contentType := http.DetectContentType(sniff)
	if contentType != "application/pdf" {
		return fmt.Errorf("%w (got %s)", ErrNotPDF, contentType)
	}
	name := filepath.Base(part.FileName())
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "invoice.pdf"
	}
	up.FileName = name
	up.ContentType = contentType
	up.Data = data.Bytes()
	return nil
}
