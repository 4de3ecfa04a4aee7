// Package repository persists asynchronously processed invoices in Postgres.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dharsanguruparan/upnqr/internal/upn"
)

// InvoiceStatus enumerates the lifecycle of an uploaded invoice.
type InvoiceStatus string

const (
	StatusQueued     InvoiceStatus = "queued"
	StatusProcessing InvoiceStatus = "processing"
	StatusCompleted  InvoiceStatus = "completed"
	StatusFailed     InvoiceStatus = "failed"
)

var ErrNotFound = errors.New("invoice not found")

// DBTX is the part of *pgxpool.Pool the repository needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Invoice represents a row in the invoices table.
type Invoice struct {
	ID           string        `json:"id"`
	FileName     string        `json:"fileName"`
	ObjectKey    string        `json:"objectKey"`
	QRKey        *string       `json:"qrKey,omitempty"`
	Status       InvoiceStatus `json:"status"`
	Record       *upn.Record   `json:"record,omitempty"`
	Payload      string        `json:"payload,omitempty"`
	ErrorMessage *string       `json:"errorMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// InvoiceRepository wraps all SQL used by the API and the worker.
type InvoiceRepository struct {
	db  DBTX
	now func() time.Time
}

func NewInvoiceRepository(db DBTX) *InvoiceRepository {
	return &InvoiceRepository{db: db, now: time.Now}
}

// Create inserts a queued invoice before processing begins.
func (r *InvoiceRepository) Create(ctx context.Context, inv *Invoice) error {
	now := r.now().UTC()
	inv.Status = StatusQueued
	inv.CreatedAt = now
	inv.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO invoices (id, file_name, object_key, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, inv.ID, inv.FileName, inv.ObjectKey, inv.Status, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// Get returns an invoice by id.
func (r *InvoiceRepository) Get(ctx context.Context, id string) (*Invoice, error) {
	var (
		inv        Invoice
		status     string
		recordJSON []byte
	)
	row := r.db.QueryRow(ctx, `
		SELECT id, file_name, object_key, qr_key, status, record, COALESCE(payload,''), error_message, created_at, updated_at
		FROM invoices WHERE id=$1
	`, id)
	err := row.Scan(&inv.ID, &inv.FileName, &inv.ObjectKey, &inv.QRKey, &status,
		&recordJSON, &inv.Payload, &inv.ErrorMessage, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("select invoice: %w", err)
	}
	inv.Status = InvoiceStatus(status)
	if len(recordJSON) > 0 {
		var rec upn.Record
		if err := json.Unmarshal(recordJSON, &rec); err != nil {
			return nil, fmt.Errorf("decode invoice record: %w", err)
		}
		inv.Record = &rec
	}
	return &inv, nil
}

// MarkProcessing sets the status to processing and clears an earlier error.
func (r *InvoiceRepository) MarkProcessing(ctx context.Context, id string) error {
	return r.exec(ctx, `
		UPDATE invoices SET status=$1, error_message=NULL, updated_at=$2 WHERE id=$3
	`, id, StatusProcessing, r.now().UTC(), id)
}

// MarkFailed stores the failure message. A non-nil rec keeps the extracted
// fields so a rejected invoice can still be inspected.
func (r *InvoiceRepository) MarkFailed(ctx context.Context, id, msg string, rec *upn.Record) error {
	recordArg, err := recordValue(rec)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE invoices
		SET status=$1, error_message=$2, record=COALESCE($3, record), updated_at=$4
		WHERE id=$5
	`, id, StatusFailed, msg, recordArg, r.now().UTC(), id)
}

// MarkCompleted stores the record, the payload and the object key of the
// rendered QR code.
func (r *InvoiceRepository) MarkCompleted(ctx context.Context, id string, rec *upn.Record, payload, qrKey string) error {
	recordArg, err := recordValue(rec)
	if err != nil {
		return err
	}
	return r.exec(ctx, `
		UPDATE invoices
		SET status=$1, record=$2, payload=$3, qr_key=$4, error_message=NULL, updated_at=$5
		WHERE id=$6
	`, id, StatusCompleted, recordArg, payload, qrKey, r.now().UTC(), id)
}

func (r *InvoiceRepository) exec(ctx context.Context, stmt, id string, args ...any) error {
	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// recordValue encodes rec for a jsonb column; nil stays SQL NULL.
func recordValue(rec *upn.Record) (any, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode invoice record: %w", err)
	}
	return data, nil
}
