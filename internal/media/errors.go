package media

import (
	"errors"
	"fmt"
)

var (
	// ErrPipeline matches every failure of the fetch, upload or sign steps.
	ErrPipeline = errors.New("media pipeline failed")
	// ErrProviderUnavailable indicates the object store or fetcher is not configured.
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrAssetTooLarge indicates the payload exceeds the configured max asset size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrPathTraversal indicates a storage key attempted directory traversal.
	ErrPathTraversal = errors.New("path traversal is forbidden")
)

// ContentFetchError reports a failure to download attachment bytes from LINE.
// Status is zero when no HTTP response was received.
type ContentFetchError struct {
	MessageID string
	Status    int
	Body      string
	Err       error
}

func (e *ContentFetchError) Error() string {
	msg := "fetch content"
	if e.MessageID != "" {
		msg += " for message " + e.MessageID
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContentFetchError) Unwrap() error { return e.Err }

func (e *ContentFetchError) Is(target error) bool { return target == ErrPipeline }

// StorageWriteError reports a failed upload to the object store.
type StorageWriteError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("upload %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

func (e *StorageWriteError) Is(target error) bool { return target == ErrPipeline }

// SignError reports a failure to mint a signed URL for a stored object.
type SignError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *SignError) Error() string {
	return fmt.Sprintf("sign %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *SignError) Unwrap() error { return e.Err }

func (e *SignError) Is(target error) bool { return target == ErrPipeline }
