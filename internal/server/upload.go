package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/extraction"
	"github.com/dharsanguruparan/upnqr/internal/middleware"
	"github.com/dharsanguruparan/upnqr/internal/model"
	"github.com/dharsanguruparan/upnqr/internal/processing"
	"github.com/dharsanguruparan/upnqr/internal/upload"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// uploadResponse is the JSON form of the result page.
type uploadResponse struct {
	*model.Result
	Errors      []string `json:"errors,omitempty"`
	DownloadURL string   `json:"downloadUrl,omitempty"`
}

type resultPage struct {
	Result      *model.Result
	Errors      []string
	ImageURL    template.URL
	ImageSize   int
	Amount      string
	DownloadURL string
	RecordJSON  string
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	up, err := upload.Read(w, r, s.cfg.MaxFileBytes)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, upload.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}
	if err := s.verifier.Verify(r.Context(), up.Fields[botpoisonField]); err != nil {
		s.logger.Info("upload rejected by bot check",
			zap.String("remote", middleware.ClientIP(r)), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusTeapot), http.StatusTeapot)
		return
	}

	out, err := s.processor.ProcessPDF(r.Context(), up.Data, up.FileName)
	result := s.newResult(up, out, err)
	s.store.Save(result)

	status := http.StatusOK
	var problems []string
	if err != nil {
		status = statusFor(err)
		problems = describe(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("invoice processing failed",
				zap.String("id", result.ID), zap.String("file", up.FileName), zap.Error(err))
		}
	}

	if wantsJSON(r) {
		resp := uploadResponse{Result: result, Errors: problems}
		if result.HasSymbol() {
			resp.DownloadURL = s.downloadURL(result.ID)
		}
		respondJSON(w, status, resp)
		return
	}
	s.render(w, status, "result.html", s.resultPage(result, problems))
}

// newResult records what the pipeline produced, including partial output
// when a later step failed.
func (s *Server) newResult(up *upload.Upload, out *processing.Outcome, err error) *model.Result {
	res := &model.Result{
		ID:        uuid.NewString(),
		FileName:  up.FileName,
		Size:      up.Size(),
		Status:    model.StatusComplete,
		CreatedAt: s.now().UTC(),
	}
	if out != nil {
		res.Text = out.Text
		res.Record = out.Record
		res.Cached = out.Cached
		if out.Rendered != nil {
			res.Payload = out.Payload.String()
			res.Checksum = out.Payload.Checksum()
			res.PNG = out.PNG
			for _, t := range out.Payload.Tolerated {
				res.Tolerated = append(res.Tolerated, t.Error())
			}
		}
	}
	if err != nil {
		res.Status = model.StatusFailed
		if processing.IsDataError(err) {
			res.Status = model.StatusInvalid
		}
		res.Message = err.Error()
	}
	return res
}

func (s *Server) resultPage(res *model.Result, problems []string) resultPage {
	page := resultPage{Result: res, Errors: problems}
	if res.Record != nil {
		if b, err := json.MarshalIndent(res.Record, "", "  "); err == nil {
			page.RecordJSON = string(b)
		}
	}
	if !res.HasSymbol() {
		return page
	}
	page.ImageURL = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(res.PNG))
	page.ImageSize = s.processor.SymbolSize()
	page.DownloadURL = s.downloadURL(res.ID)
	if payload, err := upn.Parse(res.Payload); err == nil {
		currency := ""
		if res.Record != nil {
			currency = res.Record.Currency
		}
		page.Amount = displayAmount(payload.AmountCents(), currency)
	}
	return page
}

// displayAmount formats cents in the invoice currency, falling back to EUR,
// the only currency a UPN order can carry.
func displayAmount(cents int64, currency string) string {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || money.GetCurrency(code) == nil {
		code = money.EUR
	}
	return money.New(cents, code).Display()
}

// statusFor maps a pipeline error onto the response status.
func statusFor(err error) int {
	switch {
	case processing.IsDataError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extraction.ErrExtraction):
		return http.StatusBadGateway
	case errors.Is(err, processing.ErrUnreadablePDF):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// describe lists one line per invalid field, or the whole error when it is
// not about fields.
func describe(err error) []string {
	fields := upn.Errors(err)
	if len(fields) == 0 {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(fields))
	for _, fe := range fields {
		out = append(out, fe.Error())
	}
	return out
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
