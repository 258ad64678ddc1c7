// Package line wraps the LINE Messaging API SDK for replies and attachment
// downloads.
package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/memohai/nextplot/internal/media"
	"github.com/memohai/nextplot/internal/prune"
)

const (
	DefaultAPIBase     = "https://api.line.me"
	DefaultDataAPIBase = "https://api-data.line.me"
	defaultTimeout     = 30 * time.Second
	maxErrorBodyBytes  = 2048
)

// ReplySendError reports a failed reply API call.
type ReplySendError struct {
	ReplyToken string
	Err        error
}

func (e *ReplySendError) Error() string {
	return fmt.Sprintf("send reply: %v", e.Err)
}

func (e *ReplySendError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	AccessToken string
	APIBase     string
	DataAPIBase string
	HTTPClient  *http.Client
}

// Client sends replies and downloads message content for one channel.
type Client struct {
	api    *messaging_api.MessagingApiAPI
	blob   *messaging_api.MessagingApiBlobAPI
	logger *slog.Logger
}

// NewClient builds the messaging and blob API clients.
func NewClient(log *slog.Logger, opts Options) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(opts.AccessToken) == "" {
		return nil, errors.New("line channel access token is required")
	}
	if opts.APIBase == "" {
		opts.APIBase = DefaultAPIBase
	}
	if opts.DataAPIBase == "" {
		opts.DataAPIBase = DefaultDataAPIBase
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultTimeout}
	}

	api, err := messaging_api.NewMessagingApiAPI(opts.AccessToken,
		messaging_api.WithEndpoint(opts.APIBase),
		messaging_api.WithHTTPClient(opts.HTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(opts.AccessToken,
		messaging_api.WithBlobEndpoint(opts.DataAPIBase),
		messaging_api.WithBlobHTTPClient(opts.HTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create messaging blob client: %w", err)
	}
	return &Client{
		api:    api,
		blob:   blob,
		logger: log.With(slog.String("service", "line")),
	}, nil
}

// Reply sends messages with a reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages ...messaging_api.MessageInterface) error {
	if strings.TrimSpace(replyToken) == "" {
		return &ReplySendError{Err: errors.New("reply token is required")}
	}
	if len(messages) == 0 {
		return &ReplySendError{ReplyToken: replyToken, Err: errors.New("no messages")}
	}
	_, err := c.api.WithContext(ctx).ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   messages,
	})
	if err != nil {
		return &ReplySendError{ReplyToken: replyToken, Err: err}
	}
	return nil
}

// FetchContent downloads the binary content of a message. Non-2xx responses
// become *media.ContentFetchError carrying the status and a prefix of the body.
func (c *Client) FetchContent(ctx context.Context, messageID string) (media.Content, error) {
	// The plain wrapper drops the response on non-2xx; the HttpInfo variant
	// keeps it with the body re-buffered.
	raw, resp, err := c.blob.WithContext(ctx).GetMessageContentWithHttpInfo(messageID)
	if err != nil {
		fetchErr := &media.ContentFetchError{MessageID: messageID, Err: err}
		if raw != nil {
			fetchErr.Status = raw.StatusCode
			if raw.Body != nil {
				body, _ := io.ReadAll(io.LimitReader(raw.Body, maxErrorBodyBytes))
				_ = raw.Body.Close()
				fetchErr.Body = prune.Body(string(body))
			}
		}
		return media.Content{}, fetchErr
	}
	if resp == nil {
		resp = raw
	}
	if resp == nil || resp.Body == nil {
		return media.Content{}, &media.ContentFetchError{MessageID: messageID, Err: errors.New("empty response")}
	}
	return media.Content{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
