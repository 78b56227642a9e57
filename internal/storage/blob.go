// Package storage provides durable blob storage for generated media.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultUploadTimeout = 60 * time.Second

// BlobStore persists a binary object and returns its public URL.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// BucketClient implements BlobStore against a bucket-scoped object storage
// HTTP API (Supabase-storage wire shape).
type BucketClient struct {
	baseURL    string
	serviceKey string
	bucket     string
	httpClient *http.Client
}

// NewBucketClient creates a blob store client for one bucket.
func NewBucketClient(baseURL, serviceKey, bucket string) *BucketClient {
	return &BucketClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		bucket:     bucket,
		httpClient: &http.Client{Timeout: defaultUploadTimeout},
	}
}

// Put uploads an object and returns its public URL.
func (c *BucketClient) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to upload empty object %s", key)
	}

	endpoint := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, string(body))
	}

	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, url.PathEscape(key)), nil
}
