package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"
)

// DefaultSignedURLTTL is the lifetime of signed URLs when none is configured.
const DefaultSignedURLTTL = time.Hour

// IngestorOptions tunes an Ingestor. Zero values fall back to defaults.
type IngestorOptions struct {
	Bucket       string
	SignedURLTTL time.Duration
	MaxBytes     int64
	Now          func() time.Time
}

// Ingestor fetches attachments from LINE, stores them under a dated key and
// returns a signed reference.
type Ingestor struct {
	fetcher  ContentFetcher
	store    ObjectStore
	bucket   string
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time
	logger   *slog.Logger
}

// NewIngestor creates an ingestor over the given fetcher and object store.
func NewIngestor(log *slog.Logger, fetcher ContentFetcher, store ObjectStore, opts IngestorOptions) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = DefaultSignedURLTTL
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Ingestor{
		fetcher:  fetcher,
		store:    store,
		bucket:   opts.Bucket,
		ttl:      opts.SignedURLTTL,
		maxBytes: opts.MaxBytes,
		now:      opts.Now,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Ingest runs fetch, store and sign for one attachment. Every returned error
// satisfies errors.Is(err, ErrPipeline).
func (i *Ingestor) Ingest(ctx context.Context, att Attachment) (Record, error) {
	if i.fetcher == nil || i.store == nil {
		return Record{}, &StorageWriteError{Bucket: i.bucket, Err: ErrProviderUnavailable}
	}
	if strings.TrimSpace(att.MessageID) == "" {
		return Record{}, &ContentFetchError{Err: errors.New("message id is required")}
	}

	content, err := i.fetcher.FetchContent(ctx, att.MessageID)
	if err != nil {
		var fetchErr *ContentFetchError
		if errors.As(err, &fetchErr) {
			return Record{}, err
		}
		return Record{}, &ContentFetchError{MessageID: att.MessageID, Err: err}
	}
	data, err := ReadAllWithLimit(content.Body, i.maxBytes)
	_ = content.Body.Close()
	if err != nil {
		return Record{}, &ContentFetchError{MessageID: att.MessageID, Err: err}
	}

	contentType := normalizeContentType(content.ContentType)
	fileName := FileName(att, contentType)
	key := StorageKey(i.now(), fileName)

	if err := i.store.EnsureBucket(ctx, i.bucket); err != nil {
		i.logger.Warn("ensure bucket failed",
			slog.String("bucket", i.bucket), slog.Any("error", err))
	}
	if err := i.store.Put(ctx, i.bucket, key, contentType, bytes.NewReader(data)); err != nil {
		return Record{}, &StorageWriteError{Bucket: i.bucket, Key: key, Err: err}
	}
	signed, err := i.store.Sign(ctx, i.bucket, key, i.ttl)
	if err != nil {
		return Record{}, &SignError{Bucket: i.bucket, Key: key, Err: err}
	}

	i.logger.Info("media stored",
		slog.String("message_id", att.MessageID),
		slog.String("path", key),
		slog.String("content_type", contentType),
		slog.Int("size", len(data)),
	)
	return Record{
		Bucket:      i.bucket,
		Path:        key,
		ContentType: contentType,
		SignedURL:   signed,
		FileName:    fileName,
	}, nil
}

// StorageKey returns the dated object key line/YYYY/MM/DD/<fileName> in UTC.
func StorageKey(at time.Time, fileName string) string {
	at = at.UTC()
	return path.Join("line",
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%02d", at.Day()),
		fileName,
	)
}

var extPattern = regexp.MustCompile(`(?i)\.[a-z0-9]+$`)

// FileName derives the stored file name for an attachment. A declared name
// that already has an extension is kept; otherwise the extension comes from
// an image/* content type, with .jpg as the fallback for images. Other
// content types add no extension.
func FileName(att Attachment, contentType string) string {
	name := sanitizeName(att.FileName)
	if name == "" {
		name = sanitizeName(att.MessageID)
	}
	if extPattern.MatchString(name) {
		return name
	}
	return name + extensionFor(att.Type, contentType)
}

func extensionFor(kind MediaType, contentType string) string {
	if ext := extensionFromMime(contentType); ext != "" {
		return ext
	}
	if sub, ok := strings.CutPrefix(contentType, "image/"); ok && sub != "" {
		return "." + strings.ReplaceAll(sub, "jpeg", "jpg")
	}
	if kind == MediaTypeImage {
		return ".jpg"
	}
	return ""
}

func extensionFromMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}

func normalizeContentType(raw string) string {
	mime, _, _ := strings.Cut(raw, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		return "application/octet-stream"
	}
	return mime
}

// sanitizeName drops directory components so a declared name cannot escape
// the dated prefix.
func sanitizeName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
