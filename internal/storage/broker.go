package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docchat-platform/internal/config"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Broker mints short-lived direct-transfer credentials against the
// S3-compatible object store. No file bytes ever pass through the
// application during upload; the client talks to storage directly.
type Broker struct {
	client     *minio.Client
	bucket     string
	expiry     time.Duration
	httpClient *http.Client
}

func NewBroker(cfg *config.Config) (*Broker, error) {
	client, err := minio.New(cfg.StorageEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.StorageAccessKey, cfg.StorageSecretKey, ""),
		Secure: cfg.StorageUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Broker{
		client:     client,
		bucket:     cfg.StorageBucket,
		expiry:     time.Duration(cfg.PresignExpiry) * time.Second,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// DeriveKey builds the server-chosen storage key: a random suffix is
// appended before the extension so same-named uploads never collide.
// "report.pdf" becomes "report-<uuid>.pdf".
func DeriveKey(filename string) string {
	ext := ""
	base := filename
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		base = filename[:idx]
		ext = filename[idx:]
	}
	return fmt.Sprintf("%s-%s%s", base, uuid.NewString(), ext)
}

// PresignUpload returns a time-limited PUT URL for the given key.
func (b *Broker) PresignUpload(ctx context.Context, key string) (string, error) {
	u, err := b.client.PresignedPutObject(ctx, b.bucket, key, b.expiry)
	if err != nil {
		return "", fmt.Errorf("presign upload: %w", err)
	}
	return u.String(), nil
}

// PresignDownload returns a time-limited GET URL for the given key.
func (b *Broker) PresignDownload(ctx context.Context, key string) (string, error) {
	u, err := b.client.PresignedGetObject(ctx, b.bucket, key, b.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return u.String(), nil
}

// Fetch reads the uploaded object back through a fresh read credential.
// maxSize bounds the in-memory copy.
func (b *Broker) Fetch(ctx context.Context, key string, maxSize int64) ([]byte, error) {
	signed, err := b.PresignDownload(ctx, key)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch object %q: storage returned status %d", key, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("object %q exceeds size limit of %d bytes", key, maxSize)
	}
	return data, nil
}
