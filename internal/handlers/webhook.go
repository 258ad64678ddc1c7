package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/nextplot/internal/pipeline"
	"github.com/memohai/nextplot/internal/signature"
)

const (
	DefaultWebhookPath         = "/webhook/line"
	defaultWebhookMaxBodyBytes = 1 << 20
)

type webhookPipeline interface {
	Handle(ctx context.Context, body []byte, sig string) pipeline.Result
}

// WebhookOptions configures the LINE webhook route.
type WebhookOptions struct {
	Path         string
	MaxBodyBytes int64
	// RejectMalformed answers 400 for bodies that are not JSON instead of
	// acknowledging them.
	RejectMalformed bool
}

// WebhookHandler receives LINE webhook deliveries.
type WebhookHandler struct {
	logger   *slog.Logger
	pipeline webhookPipeline
	opts     WebhookOptions
}

type webhookResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewWebhookHandler creates the public webhook handler.
func NewWebhookHandler(log *slog.Logger, p webhookPipeline, opts WebhookOptions) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	if opts.Path == "" {
		opts.Path = DefaultWebhookPath
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultWebhookMaxBodyBytes
	}
	return &WebhookHandler{
		logger:   log.With(slog.String("handler", "line_webhook")),
		pipeline: p,
		opts:     opts,
	}
}

// Register registers the webhook route for every method so non-POST
// requests get a JSON 405.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.Any(h.opts.Path, h.Handle)
}

// Handle verifies and processes one delivery.
func (h *WebhookHandler) Handle(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("webhook handler panicked", slog.Any("panic", r))
			err = c.JSON(http.StatusInternalServerError, webhookResponse{Error: "internal_error"})
		}
	}()

	if c.Request().Method != http.MethodPost {
		c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
		return c.JSON(http.StatusMethodNotAllowed, webhookResponse{Error: "method_not_allowed"})
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, h.opts.MaxBodyBytes+1))
	if err != nil {
		h.logger.Warn("read webhook body failed", slog.Any("error", err))
		return c.JSON(http.StatusBadRequest, webhookResponse{Error: "read_body_failed"})
	}
	if int64(len(payload)) > h.opts.MaxBodyBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, webhookResponse{Error: "payload_too_large"})
	}

	// Processing continues if the platform hangs up before the replies are out.
	ctx := context.WithoutCancel(c.Request().Context())
	result := h.pipeline.Handle(ctx, payload, c.Request().Header.Get(signature.Header))

	switch result.Outcome {
	case pipeline.OutcomeOK:
		return c.JSON(http.StatusOK, webhookResponse{OK: true})
	case pipeline.OutcomeUnauthorized:
		return c.JSON(http.StatusUnauthorized, webhookResponse{Error: result.AuthFailure})
	case pipeline.OutcomeMalformed:
		if h.opts.RejectMalformed {
			return c.JSON(http.StatusBadRequest, webhookResponse{Error: "invalid_json"})
		}
		return c.JSON(http.StatusOK, webhookResponse{OK: true})
	default:
		h.logger.Error("unexpected pipeline outcome", slog.String("outcome", result.Outcome.String()))
		return c.JSON(http.StatusInternalServerError, webhookResponse{Error: "internal_error"})
	}
}
