// Package queue defines the background task shared by the invoice API and
// the worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ProcessInvoiceTask is scheduled each time an invoice PDF is uploaded.
	ProcessInvoiceTask = "invoice:process"
)

// ProcessPayload is serialized into the task payload so the worker knows which
// object to download from MinIO.
type ProcessPayload struct {
	InvoiceID string `json:"invoice_id"`
	ObjectKey string `json:"object_key"`
	FileName  string `json:"file_name"`
}

// Enqueuer is implemented by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewProcessTask builds the task for payload, retried at most maxRetry times.
func NewProcessTask(payload ProcessPayload, maxRetry int) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ProcessInvoiceTask, data, asynq.MaxRetry(maxRetry)), nil
}

// EnqueueProcess enqueues an invoice processing job.
func EnqueueProcess(ctx context.Context, client Enqueuer, payload ProcessPayload, maxRetry int) error {
	task, err := NewProcessTask(payload, maxRetry)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue process task: %w", err)
	}
	return nil
}

// DecodeProcess reads the payload of a ProcessInvoiceTask.
func DecodeProcess(task *asynq.Task) (ProcessPayload, error) {
	var payload ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("decode payload: %w", err)
	}
	if payload.InvoiceID == "" || payload.ObjectKey == "" {
		return payload, fmt.Errorf("decode payload: invoice_id and object_key are required")
	}
	return payload, nil
}
