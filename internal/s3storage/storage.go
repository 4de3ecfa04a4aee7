package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/upnqr/internal/config"
)

// Storage wraps MinIO/S3 interactions for uploaded invoices and rendered QR
// codes.
type Storage struct {
	client    *minio.Client
	rawBucket string
	qrBucket  string
	region    string
}

// New creates a MinIO client from the s3 config section.
func New(cfg config.S3) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:    client,
		rawBucket: cfg.RawBucket,
		qrBucket:  cfg.QRBucket,
		region:    cfg.Region,
	}, nil
}

// RawKey is the object key of an uploaded invoice PDF.
func RawKey(invoiceID, fileName string) string {
	name := path.Base(fileName)
	if name == "." || name == "/" {
		name = "invoice.pdf"
	}
	return fmt.Sprintf("invoices/%s/%s", invoiceID, name)
}

// QRKey is the object key of the rendered QR code of an invoice.
func QRKey(invoiceID string) string {
	return fmt.Sprintf("invoices/%s/upn-qr.png", invoiceID)
}

// EnsureBuckets makes sure the raw/qr buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.rawBucket, s.qrBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// UploadRaw uploads the PDF into the raw bucket.
func (s *Storage) UploadRaw(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.rawBucket, objectKey, reader, size, opts)
	if err != nil {
		return fmt.Errorf("upload raw object: %w", err)
	}
	return nil
}

// UploadQR uploads a rendered PNG into the qr bucket.
func (s *Storage) UploadQR(ctx context.Context, objectKey string, png []byte) error {
	opts := minio.PutObjectOptions{ContentType: "image/png"}
	_, err := s.client.PutObject(ctx, s.qrBucket, objectKey, bytes.NewReader(png), int64(len(png)), opts)
	if err != nil {
		return fmt.Errorf("upload qr object: %w", err)
	}
	return nil
}

// DownloadRaw fetches the raw PDF bytes from storage.
func (s *Storage) DownloadRaw(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.rawBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get raw object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read raw object: %w", err)
	}
	return buf, nil
}

// PresignQRURL returns a signed GET URL for a rendered QR code.
func (s *Storage) PresignQRURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", `attachment; filename="upn-qr.png"`)
	u, err := s.client.PresignedGetObject(ctx, s.qrBucket, objectKey, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign qr object: %w", err)
	}
	return u.String(), nil
}
