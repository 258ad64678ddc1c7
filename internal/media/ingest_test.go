package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	data        []byte
	contentType string
	err         error
	calls       []string
}

func (f *fakeFetcher) FetchContent(_ context.Context, messageID string) (Content, error) {
	f.calls = append(f.calls, messageID)
	if f.err != nil {
		return Content{}, f.err
	}
	return Content{Body: io.NopCloser(bytes.NewReader(f.data)), ContentType: f.contentType}, nil
}

type putCall struct {
	bucket, key, contentType string
	data                     []byte
}

type fakeStore struct {
	ensureErr error
	putErr    error
	signErr   error
	puts      []putCall
	ensured   []string
	signedTTL time.Duration
}

func (s *fakeStore) EnsureBucket(_ context.Context, bucket string) error {
	s.ensured = append(s.ensured, bucket)
	return s.ensureErr
}

func (s *fakeStore) Put(_ context.Context, bucket, key, contentType string, reader io.Reader) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.puts = append(s.puts, putCall{bucket: bucket, key: key, contentType: contentType, data: data})
	return nil
}

func (s *fakeStore) Sign(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	s.signedTTL = ttl
	return "https://store.example/" + bucket + "/" + key + "?token=t", nil
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 5, 23, 30, 0, 0, time.FixedZone("ICT", 7*3600))
}

func newTestIngestor(f ContentFetcher, s ObjectStore) *Ingestor {
	return NewIngestor(nil, f, s, IngestorOptions{Bucket: "plots", Now: fixedClock})
}

func TestIngest_ImageWithoutName(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("jpeg-bytes"), contentType: "image/jpeg"}
	store := &fakeStore{}
	rec, err := newTestIngestor(fetcher, store).Ingest(context.Background(), Attachment{
		MessageID: "m1",
		Type:      MediaTypeImage,
	})
	require.NoError(t, err)

	assert.Equal(t, "plots", rec.Bucket)
	assert.Equal(t, "line/2024/03/05/m1.jpg", rec.Path)
	assert.Equal(t, "image/jpeg", rec.ContentType)
	assert.Equal(t, "m1.jpg", rec.FileName)
	assert.Equal(t, "https://store.example/plots/line/2024/03/05/m1.jpg?token=t", rec.SignedURL)
	assert.Equal(t, []string{"m1"}, fetcher.calls)
	assert.Equal(t, []string{"plots"}, store.ensured)
	require.Len(t, store.puts, 1)
	assert.Equal(t, []byte("jpeg-bytes"), store.puts[0].data)
	assert.Equal(t, "image/jpeg", store.puts[0].contentType)
	assert.Equal(t, DefaultSignedURLTTL, store.signedTTL)
}

func TestIngest_EnsureBucketFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte("x"), contentType: "application/pdf"}
	store := &fakeStore{ensureErr: errors.New("409 conflict")}
	rec, err := newTestIngestor(fetcher, store).Ingest(context.Background(), Attachment{
		MessageID: "m2",
		Type:      MediaTypeFile,
		FileName:  "deed.PDF",
	})
	require.NoError(t, err)
	assert.Equal(t, "line/2024/03/05/deed.PDF", rec.Path)
}

func TestIngest_FailuresMatchPipelineError(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	cases := []struct {
		name    string
		fetcher *fakeFetcher
		store   *fakeStore
		target  any
	}{
		{
			name:    "fetch",
			fetcher: &fakeFetcher{err: cause},
			store:   &fakeStore{},
			target:  new(*ContentFetchError),
		},
		{
			name:    "upload",
			fetcher: &fakeFetcher{data: []byte("x"), contentType: "image/png"},
			store:   &fakeStore{putErr: cause},
			target:  new(*StorageWriteError),
		},
		{
			name:    "sign",
			fetcher: &fakeFetcher{data: []byte("x"), contentType: "image/png"},
			store:   &fakeStore{signErr: cause},
			target:  new(*SignError),
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newTestIngestor(tc.fetcher, tc.store).Ingest(context.Background(), Attachment{
				MessageID: "m3",
				Type:      MediaTypeImage,
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPipeline)
			assert.ErrorIs(t, err, cause)
			assert.ErrorAs(t, err, tc.target)
		})
	}
}

func TestIngest_FetchErrorPassesThrough(t *testing.T) {
	t.Parallel()

	fetchErr := &ContentFetchError{MessageID: "m4", Status: 404, Body: "not found"}
	_, err := newTestIngestor(&fakeFetcher{err: fetchErr}, &fakeStore{}).Ingest(context.Background(), Attachment{
		MessageID: "m4",
		Type:      MediaTypeImage,
	})
	var got *ContentFetchError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 404, got.Status)
	assert.ErrorIs(t, err, ErrPipeline)
}

func TestIngest_TooLarge(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{data: []byte(strings.Repeat("a", 16)), contentType: "image/png"}
	store := &fakeStore{}
	ing := NewIngestor(nil, fetcher, store, IngestorOptions{Bucket: "plots", MaxBytes: 8, Now: fixedClock})
	_, err := ing.Ingest(context.Background(), Attachment{MessageID: "m5", Type: MediaTypeImage})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAssetTooLarge)
	assert.ErrorIs(t, err, ErrPipeline)
	assert.Empty(t, store.puts)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		att         Attachment
		contentType string
		want        string
	}{
		{name: "image jpeg", att: Attachment{MessageID: "1", Type: MediaTypeImage}, contentType: "image/jpeg", want: "1.jpg"},
		{name: "image png", att: Attachment{MessageID: "2", Type: MediaTypeImage}, contentType: "image/png", want: "2.png"},
		{name: "image unknown subtype", att: Attachment{MessageID: "3", Type: MediaTypeImage}, contentType: "image/heic", want: "3.heic"},
		{name: "image octet stream", att: Attachment{MessageID: "4", Type: MediaTypeImage}, contentType: "application/octet-stream", want: "4.jpg"},
		{name: "file keeps extension", att: Attachment{MessageID: "5", Type: MediaTypeFile, FileName: "plan.dwg"}, contentType: "application/octet-stream", want: "plan.dwg"},
		{name: "file without extension", att: Attachment{MessageID: "6", Type: MediaTypeFile, FileName: "notes"}, contentType: "application/octet-stream", want: "notes"},
		{name: "file pdf content gets no extension", att: Attachment{MessageID: "7", Type: MediaTypeFile, FileName: "scan"}, contentType: "application/pdf", want: "scan"},
		{name: "file by message id with pdf content", att: Attachment{MessageID: "m1", Type: MediaTypeFile}, contentType: "application/pdf", want: "m1"},
		{name: "file with image content", att: Attachment{MessageID: "9", Type: MediaTypeFile}, contentType: "image/png", want: "9.png"},
		{name: "declared path stripped", att: Attachment{MessageID: "8", Type: MediaTypeFile, FileName: "../../etc/passwd.txt"}, contentType: "text/plain", want: "passwd.txt"},
	}
	for _, tc := range cases {
		if got := FileName(tc.att, tc.contentType); got != tc.want {
			t.Fatalf("%s: FileName() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestStorageKey_UsesUTC(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, time.January, 1, 2, 0, 0, 0, time.FixedZone("ICT", 7*3600))
	if got := StorageKey(at, "a.jpg"); got != "line/2023/12/31/a.jpg" {
		t.Fatalf("StorageKey() = %q", got)
	}
}

func TestNormalizeContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/jpeg", normalizeContentType("Image/JPEG; charset=binary"))
	assert.Equal(t, "application/octet-stream", normalizeContentType(""))
}
