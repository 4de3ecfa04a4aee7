// Package worker runs queued invoices through the pipeline and stores the
// rendered QR codes.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/upnqr/internal/processing"
	"github.com/dharsanguruparan/upnqr/internal/queue"
	"github.com/dharsanguruparan/upnqr/internal/s3storage"
	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// Invoices is the part of the invoice repository the worker updates.
type Invoices interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, msg string, rec *upn.Record) error
	MarkCompleted(ctx context.Context, id string, rec *upn.Record, payload, qrKey string) error
}

// Objects is the part of the object store the worker reads and writes.
type Objects interface {
	DownloadRaw(ctx context.Context, objectKey string) ([]byte, error)
	UploadQR(ctx context.Context, objectKey string, png []byte) error
}

// Pipeline turns a PDF into a rendered payment order.
type Pipeline interface {
	ProcessPDF(ctx context.Context, document []byte, fileName string) (*processing.Outcome, error)
}

// Handler is plugged into the asynq worker loop.
type Handler struct {
	invoices Invoices
	objects  Objects
	pipeline Pipeline
	logger   *zap.Logger

	finalAttempt func(ctx context.Context) bool
}

func NewHandler(invoices Invoices, objects Objects, pipeline Pipeline, logger *zap.Logger) *Handler {
	return &Handler{
		invoices:     invoices,
		objects:      objects,
		pipeline:     pipeline,
		logger:       logger,
		finalAttempt: finalAttempt,
	}
}

// finalAttempt reports whether asynq will give up on the task if this run
// fails. Outside the asynq server there are no retries at all.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// Mux registers the process job handler.
func (h *Handler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessInvoiceTask, h.ProcessTask)
	return mux
}

// ProcessTask handles one queue.ProcessInvoiceTask. Errors caused by the
// invoice itself wrap asynq.SkipRetry and mark the invoice failed at once.
// Everything else is retried, and the invoice is only marked failed once
// the retries run out.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeProcess(task)
	if err != nil {
		h.logger.Error("dropping malformed task", zap.Error(err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	log := h.logger.With(zap.String("invoice", payload.InvoiceID))

	var record *upn.Record
	failure := func(err error) error {
		permanent := processing.IsDataError(err) || errors.Is(err, processing.ErrUnreadablePDF)
		retry := !permanent && !h.finalAttempt(ctx)
		log.Warn("invoice processing failed", zap.Bool("retry", retry), zap.Error(err))
		// A retried invoice stays in processing so readers keep polling.
		if retry {
			return err
		}
		if markErr := h.invoices.MarkFailed(ctx, payload.InvoiceID, err.Error(), record); markErr != nil {
			log.Error("mark failed", zap.Error(markErr))
		}
		if permanent {
			return fmt.Errorf("%w: %w", asynq.SkipRetry, err)
		}
		return err
	}

	if err := h.invoices.MarkProcessing(ctx, payload.InvoiceID); err != nil {
		return failure(err)
	}
	data, err := h.objects.DownloadRaw(ctx, payload.ObjectKey)
	if err != nil {
		return failure(err)
	}
	out, err := h.pipeline.ProcessPDF(ctx, data, payload.FileName)
	if out != nil {
		record = out.Record
	}
	if err != nil {
		return failure(err)
	}
	qrKey := s3storage.QRKey(payload.InvoiceID)
	if err := h.objects.UploadQR(ctx, qrKey, out.PNG); err != nil {
		return failure(err)
	}
	if err := h.invoices.MarkCompleted(ctx, payload.InvoiceID, record, out.Payload.String(), qrKey); err != nil {
		return failure(err)
	}
	log.Info("invoice processed",
		zap.Bool("cached", out.Cached),
		zap.Int("checksum", out.Payload.Checksum()),
		zap.String("qr_key", qrKey))
	return nil
}
