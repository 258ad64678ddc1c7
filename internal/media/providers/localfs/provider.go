// Package localfs implements media.ObjectStore on the local filesystem.
// Objects live at <root>/<bucket>/<key>; signed URLs point at the service's
// own /media route and carry an HMAC over bucket, key and expiry.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/memohai/nextplot/internal/media"
	"github.com/memohai/nextplot/internal/signature"
)

// RoutePrefix is the HTTP path under which signed objects are served.
const RoutePrefix = "/media"

// ErrLinkExpired indicates a signed URL past its expiry.
var ErrLinkExpired = errors.New("signed link expired")

// ErrLinkInvalid indicates a signed URL whose signature does not match.
var ErrLinkInvalid = errors.New("signed link invalid")

// Provider stores objects under root.
type Provider struct {
	root       string
	publicURL  string
	signingKey string
	now        func() time.Time
}

// New creates a filesystem provider. publicURL is the externally reachable
// base of this service and may be empty for relative links.
func New(root, publicURL, signingKey string) (*Provider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: local root is required", media.ErrProviderUnavailable)
	}
	if signingKey == "" {
		return nil, errors.New("signing key is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local root: %w", err)
	}
	return &Provider{
		root:       abs,
		publicURL:  strings.TrimRight(strings.TrimSpace(publicURL), "/"),
		signingKey: signingKey,
		now:        time.Now,
	}, nil
}

// EnsureBucket creates the bucket directory.
func (p *Provider) EnsureBucket(_ context.Context, bucket string) error {
	dir, err := p.bucketDir(bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}
	return nil
}

// Put writes the object through a temp file so readers never see partial data.
func (p *Provider) Put(_ context.Context, bucket, key, _ string, reader io.Reader) error {
	dest, err := p.hostPath(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// Open reads an object.
func (p *Provider) Open(_ context.Context, bucket, key string) (*os.File, error) {
	dest, err := p.hostPath(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(dest)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Sign returns a link to RoutePrefix/<bucket>/<key> that expires after ttl.
func (p *Provider) Sign(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if _, err := p.hostPath(bucket, key); err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = media.DefaultSignedURLTTL
	}
	expires := strconv.FormatInt(p.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", signature.Sign(linkPayload(bucket, key, expires), p.signingKey))
	return p.publicURL + RoutePrefix + "/" + escapePath(bucket) + "/" + escapePath(key) + "?" + q.Encode(), nil
}

// VerifyLink checks the expires and sig query values of a signed link.
func (p *Provider) VerifyLink(bucket, key, expires, sig string) error {
	unix, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return ErrLinkInvalid
	}
	if !signature.Verify(linkPayload(bucket, key, expires), sig, p.signingKey, false) {
		return ErrLinkInvalid
	}
	if p.now().Unix() > unix {
		return ErrLinkExpired
	}
	return nil
}

// Prune removes objects in bucket last modified before cutoff and returns
// how many were deleted. Directories emptied by the prune are removed too.
func (p *Provider) Prune(ctx context.Context, bucket string, cutoff time.Time) (int, error) {
	dir, err := p.bucketDir(bucket)
	if err != nil {
		return 0, err
	}
	removed := 0
	var dirs []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir {
				dirs = append(dirs, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("delete file: %w", err)
			}
			removed++
		}
		return nil
	})
	// Deepest first so parents empty out after their children.
	for i := len(dirs) - 1; i >= 0; i-- {
		_ = os.Remove(dirs[i])
	}
	return removed, err
}

func linkPayload(bucket, key, expires string) []byte {
	return []byte(bucket + "/" + key + "\n" + expires)
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

func (p *Provider) bucketDir(bucket string) (string, error) {
	if strings.TrimSpace(bucket) == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket: %q", bucket)
	}
	return filepath.Join(p.root, bucket), nil
}

// hostPath converts bucket and key into a path below root.
func (p *Provider) hostPath(bucket, key string) (string, error) {
	dir, err := p.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("%w: absolute key %s", media.ErrPathTraversal, key)
	}
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", media.ErrPathTraversal, key)
	}
	joined := filepath.Join(dir, clean)
	if !strings.HasPrefix(joined, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", media.ErrPathTraversal, key)
	}
	return joined, nil
}
