package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// StorageClient talks to the object storage API used for chat
// attachments and voice notes.
type StorageClient struct {
	*Client
}

// NewStorageClient creates an object storage client rooted at baseURL.
func NewStorageClient(baseURL string, auth Authorizer) *StorageClient {
	return &StorageClient{Client: NewClient(baseURL, auth)}
}

func objectPath(bucket, name string) string {
	return "/object/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

// Upload stores an object and returns its key within the bucket.
func (c *StorageClient) Upload(ctx context.Context, bucket, name, contentType string, body io.Reader) (string, error) {
	headers := map[string]string{"Content-Type": contentType}
	resp, err := c.do(ctx, http.MethodPost, objectPath(bucket, name), body, headers)
	if err != nil {
		return "", err
	}

	var result struct {
		Key string `json:"Key"`
	}
	if err := decodeJSON(resp, &result, http.StatusOK); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return result.Key, nil
}

// Download fetches an object's content. The caller owns the returned
// reader and must close it.
func (c *StorageClient) Download(ctx context.Context, bucket, name string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, objectPath(bucket, name), nil, nil)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to download object: unexpected status %d: %s", resp.StatusCode, body)
	}
	return resp.Body, nil
}
