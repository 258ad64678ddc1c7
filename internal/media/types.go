package media

import (
	"context"
	"io"
	"time"
)

// MediaType classifies the kind of attachment.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeFile  MediaType = "file"
)

// Attachment identifies a LINE attachment to ingest.
type Attachment struct {
	MessageID string
	Type      MediaType
	// FileName is the declared name; LINE only sends one for file messages.
	FileName string
}

// Content is a fetched attachment body. The caller closes Body.
type Content struct {
	Body        io.ReadCloser
	ContentType string
}

// Record describes a stored and signed attachment. The JSON form is embedded
// in the persisted event row.
type Record struct {
	Bucket      string `json:"bucket"`
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
	SignedURL   string `json:"signedURL"`
	FileName    string `json:"-"`
}

// ContentFetcher downloads attachment bytes by message ID.
type ContentFetcher interface {
	FetchContent(ctx context.Context, messageID string) (Content, error)
}

// ObjectStore abstracts the bucket-oriented object storage backends.
type ObjectStore interface {
	// EnsureBucket creates bucket if it does not exist yet. An existing
	// bucket is not an error.
	EnsureBucket(ctx context.Context, bucket string) error
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, bucket, key, contentType string, reader io.Reader) error
	// Sign returns a URL granting read access to key for ttl.
	Sign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}
