package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/nextplot/internal/media/providers/localfs"
)

type signedMediaStore interface {
	VerifyLink(bucket, key, expires, sig string) error
	Open(ctx context.Context, bucket, key string) (*os.File, error)
}

// MediaHandler serves objects of the local filesystem store through the
// signed links it issues.
type MediaHandler struct {
	logger *slog.Logger
	store  signedMediaStore
}

func NewMediaHandler(log *slog.Logger, store signedMediaStore) *MediaHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MediaHandler{
		logger: log.With(slog.String("handler", "media")),
		store:  store,
	}
}

func (h *MediaHandler) Register(e *echo.Echo) {
	if h.store == nil {
		return
	}
	e.GET(localfs.RoutePrefix+"/:bucket/*", h.Serve)
}

// Serve streams one object after checking its link signature.
func (h *MediaHandler) Serve(c echo.Context) error {
	bucket, key, err := mediaObject(c.Request().URL)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	err = h.store.VerifyLink(bucket, key, c.QueryParam("expires"), c.QueryParam("sig"))
	switch {
	case errors.Is(err, localfs.ErrLinkExpired):
		return echo.NewHTTPError(http.StatusGone, "link expired")
	case err != nil:
		return echo.NewHTTPError(http.StatusForbidden, "invalid link")
	}

	f, err := h.store.Open(c.Request().Context(), bucket, key)
	if err != nil {
		h.logger.Debug("open media failed", slog.String("bucket", bucket), slog.String("key", key), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "stat failed")
	}
	http.ServeContent(c.Response(), c.Request(), path.Base(key), info.ModTime(), f)
	return nil
}

// mediaObject splits the escaped request path into bucket and key, decoding
// each exactly once. Echo's route params may or may not be decoded depending
// on whether the request carried a RawPath.
func mediaObject(u *url.URL) (string, string, error) {
	rest, ok := strings.CutPrefix(u.EscapedPath(), localfs.RoutePrefix+"/")
	if !ok {
		return "", "", errors.New("invalid path")
	}
	rawBucket, rawKey, _ := strings.Cut(rest, "/")
	bucket, err := url.PathUnescape(rawBucket)
	if err != nil || bucket == "" {
		return "", "", errors.New("invalid bucket")
	}
	key, err := url.PathUnescape(rawKey)
	if err != nil || key == "" {
		return "", "", errors.New("invalid key")
	}
	return bucket, key, nil
}
