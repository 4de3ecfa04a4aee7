package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dharsanguruparan/upnqr/internal/signing"
	"github.com/dharsanguruparan/upnqr/internal/storage"
)

func (s *Server) handleResultRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/results/")
	parts := strings.Split(path, "/")
	if parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	switch {
	case len(parts) == 1:
		s.handleResult(w, r, id)
	case len(parts) == 2 && parts[1] == "signed-url":
		s.handleSignedURL(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.store.Get(id)
	if err != nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return
	}
	resp := uploadResponse{Result: res}
	if res.HasSymbol() {
		resp.DownloadURL = s.downloadURL(res.ID)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignedURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.store.Get(id)
	if err != nil || !res.HasSymbol() {
		http.Error(w, "no QR code for result", http.StatusNotFound)
		return
	}
	q := s.signer.Query(id, s.cfg.SignedURLTTL, s.now())
	respondJSON(w, http.StatusOK, map[string]string{
		"url":     "/download?" + q.Encode(),
		"expires": q.Get("expires"),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	id, expires, sig := q.Get("id"), q.Get("expires"), q.Get("sig")
	if id == "" || expires == "" || sig == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	if err := s.signer.Verify(id, expires, sig, s.now()); err != nil {
		if errors.Is(err, signing.ErrExpired) {
			http.Error(w, "link expired", http.StatusUnauthorized)
			return
		}
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}
	res, err := s.store.Get(id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && !res.HasSymbol()) {
		http.Error(w, "QR code not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "QR code unavailable", http.StatusInternalServerError)
		return
	}
	name := strings.TrimSuffix(res.FileName, filepath.Ext(res.FileName)) + "-upn-qr.png"
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, res.CreatedAt, bytes.NewReader(res.PNG))
}

// downloadURL is a signed link to the PNG of result id.
func (s *Server) downloadURL(id string) string {
	return "/download?" + s.signer.Query(id, s.cfg.SignedURLTTL, s.now()).Encode()
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
