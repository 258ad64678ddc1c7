// Package supabase implements media.ObjectStore on the Supabase Storage API.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/memohai/nextplot/internal/media"
	sb "github.com/memohai/nextplot/internal/supabase"
)

const storagePrefix = "/storage/v1"

// Provider talks to <project>/storage/v1 with the service credentials.
type Provider struct {
	client  *resty.Client
	baseURL string
}

// New creates a storage provider over a client built by supabase.NewClient.
func New(client *resty.Client) (*Provider, error) {
	if client == nil {
		return nil, media.ErrProviderUnavailable
	}
	base := strings.TrimRight(client.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("%w: supabase url is required", media.ErrProviderUnavailable)
	}
	return &Provider{client: client, baseURL: base}, nil
}

// EnsureBucket creates a private bucket. A 409 conflict means it already exists.
func (p *Provider) EnsureBucket(ctx context.Context, bucket string) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"id": bucket, "name": bucket, "public": false}).
		Post(storagePrefix + "/bucket")
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	if resp.StatusCode() == http.StatusConflict {
		return nil
	}
	return sb.CheckResponse("create bucket", resp)
}

// Put uploads reader under bucket/key.
func (p *Provider) Put(ctx context.Context, bucket, key, contentType string, reader io.Reader) error {
	objectPath, err := objectPath(bucket, key)
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(reader).
		Post(storagePrefix + "/object/" + objectPath)
	if err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return sb.CheckResponse("upload", resp)
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// Sign asks Storage for a signed URL valid for ttl and resolves it against
// the project URL.
func (p *Provider) Sign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	objectPath, err := objectPath(bucket, key)
	if err != nil {
		return "", err
	}
	expiresIn := int(ttl / time.Second)
	if expiresIn <= 0 {
		expiresIn = int(media.DefaultSignedURLTTL / time.Second)
	}
	var out signResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]int{"expiresIn": expiresIn}).
		SetResult(&out).
		Post(storagePrefix + "/object/sign/" + objectPath)
	if err != nil {
		return "", fmt.Errorf("sign object: %w", err)
	}
	if err := sb.CheckResponse("sign", resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.SignedURL) == "" {
		return "", errors.New("supabase sign response has no signedURL")
	}
	return p.resolve(out.SignedURL), nil
}

// resolve joins a relative signed URL to the project URL. Older Storage
// versions return paths with the /storage/v1 prefix and newer ones without.
func (p *Provider) resolve(signed string) string {
	if strings.HasPrefix(signed, "http://") || strings.HasPrefix(signed, "https://") {
		return signed
	}
	if !strings.HasPrefix(signed, "/") {
		signed = "/" + signed
	}
	if !strings.HasPrefix(signed, storagePrefix+"/") {
		signed = storagePrefix + signed
	}
	return p.baseURL + signed
}

func objectPath(bucket, key string) (string, error) {
	if strings.TrimSpace(bucket) == "" {
		return "", errors.New("bucket is required")
	}
	segments := strings.Split(strings.Trim(key, "/"), "/")
	for i, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %s", media.ErrPathTraversal, key)
		}
		segments[i] = url.PathEscape(seg)
	}
	return url.PathEscape(bucket) + "/" + strings.Join(segments, "/"), nil
}
