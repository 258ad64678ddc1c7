// Package pipeline runs one webhook delivery: verify, parse, route each event
// and reply.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/memohai/nextplot/internal/completion"
	"github.com/memohai/nextplot/internal/inbound"
	"github.com/memohai/nextplot/internal/media"
	"github.com/memohai/nextplot/internal/record"
	"github.com/memohai/nextplot/internal/reply"
	"github.com/memohai/nextplot/internal/signature"
)

// DefaultEventTimeout bounds the work spent on a single event.
const DefaultEventTimeout = 20 * time.Second

// Outcome is the request-level result of Handle.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnauthorized
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Authentication failure reasons, used verbatim as HTTP error codes.
const (
	AuthMissing = "missing_signature_or_secret"
	AuthInvalid = "invalid_signature"
)

// Stats counts what happened to the events of one delivery.
type Stats struct {
	Events          int
	Processed       int
	Skipped         int
	RepliesSent     int
	PersistFailures int
	MediaFailures   int
}

// Result is returned by Handle.
type Result struct {
	Outcome Outcome
	// AuthFailure is set when Outcome is OutcomeUnauthorized.
	AuthFailure string
	Stats       Stats
}

// ReplySender delivers reply messages with a reply token.
type ReplySender interface {
	Reply(ctx context.Context, replyToken string, messages ...messaging_api.MessageInterface) error
}

// MediaIngestor stores an attachment and returns its signed reference.
type MediaIngestor interface {
	Ingest(ctx context.Context, att media.Attachment) (media.Record, error)
}

// PayloadForwarder mirrors a verified payload downstream.
type PayloadForwarder interface {
	Forward(ctx context.Context, body []byte, sig string) error
}

// Options wires a Pipeline. Sender and Ingestor are nil when no channel access
// token is configured; Forwarder is nil when mirroring is off.
type Options struct {
	Secret       string
	Relaxed      bool
	Allowlist    inbound.Allowlist
	EventTimeout time.Duration
	Records      record.Writer
	Ingestor     MediaIngestor
	Sender       ReplySender
	Forwarder    PayloadForwarder
}

// Pipeline processes webhook deliveries. Events of one delivery are handled
// sequentially in payload order.
type Pipeline struct {
	opts   Options
	logger *slog.Logger
}

// New creates a pipeline.
func New(log *slog.Logger, opts Options) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if opts.EventTimeout <= 0 {
		opts.EventTimeout = DefaultEventTimeout
	}
	return &Pipeline{
		opts:   opts,
		logger: log.With(slog.String("service", "pipeline")),
	}
}

// Handle verifies and processes one delivery. Failures inside an event are
// logged and never change the outcome.
func (p *Pipeline) Handle(ctx context.Context, body []byte, sig string) Result {
	if reason := p.authenticate(body, sig); reason != "" {
		p.logger.Warn("webhook rejected", slog.String("reason", reason))
		return Result{Outcome: OutcomeUnauthorized, AuthFailure: reason}
	}

	events, err := inbound.ParseBatch(body)
	if err != nil {
		p.logger.Warn("malformed webhook payload", slog.Any("error", err))
		return Result{Outcome: OutcomeMalformed}
	}

	if p.opts.Forwarder != nil {
		if err := p.opts.Forwarder.Forward(ctx, body, sig); err != nil {
			p.logger.Warn("forward payload failed", slog.Any("error", err))
		}
	}

	res := Result{Outcome: OutcomeOK}
	res.Stats.Events = len(events)
	for i, ev := range events {
		p.handleEvent(ctx, i, ev, &res.Stats)
	}
	p.logger.Info("webhook processed",
		slog.Int("events", res.Stats.Events),
		slog.Int("processed", res.Stats.Processed),
		slog.Int("skipped", res.Stats.Skipped),
		slog.Int("replies", res.Stats.RepliesSent),
		slog.Int("persist_failures", res.Stats.PersistFailures),
		slog.Int("media_failures", res.Stats.MediaFailures),
	)
	return res
}

func (p *Pipeline) authenticate(body []byte, sig string) string {
	if p.opts.Relaxed {
		return ""
	}
	if sig == "" || p.opts.Secret == "" {
		return AuthMissing
	}
	if !signature.Verify(body, sig, p.opts.Secret, false) {
		return AuthInvalid
	}
	return ""
}

func (p *Pipeline) handleEvent(parent context.Context, index int, ev inbound.Event, stats *Stats) {
	ctx, cancel := context.WithTimeout(parent, p.opts.EventTimeout)
	defer cancel()

	log := p.logger.With(slog.Int("event", index), slog.String("user_id", ev.SourceUserID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("event processing panicked", slog.Any("panic", r))
		}
	}()

	var out *reply.Reply
	switch action := inbound.Route(ev, p.opts.Allowlist).(type) {
	case inbound.Skip:
		stats.Skipped++
		log.Debug("event skipped", slog.String("reason", action.Reason))
		return
	case inbound.ProcessText:
		stats.Processed++
		out = p.processText(ctx, log, ev, action.Text, stats)
	case inbound.ProcessMedia:
		out = p.processMedia(ctx, log, ev, action.Attachment, stats)
		if out == nil {
			stats.Skipped++
			return
		}
		stats.Processed++
	default:
		stats.Skipped++
		return
	}

	if p.send(ctx, log, ev.ReplyToken, *out) {
		stats.RepliesSent++
	}
}

func (p *Pipeline) processText(ctx context.Context, log *slog.Logger, ev inbound.Event, text string, stats *Stats) *reply.Reply {
	p.persist(ctx, log, record.ForText(ev.SourceUserID, text, ev.Raw), stats)
	r := reply.ForCompletion(completion.Check(text))
	return &r
}

func (p *Pipeline) processMedia(ctx context.Context, log *slog.Logger, ev inbound.Event, att inbound.AttachmentMessage, stats *Stats) *reply.Reply {
	if p.opts.Ingestor == nil {
		log.Warn("media skipped: channel access token is not configured", slog.String("message_id", att.ID))
		return nil
	}
	stored, err := p.opts.Ingestor.Ingest(ctx, media.Attachment{
		MessageID: att.ID,
		Type:      media.MediaType(att.Kind),
		FileName:  att.FileName,
	})
	if err != nil {
		stats.MediaFailures++
		log.Warn("media pipeline failed", slog.String("message_id", att.ID), slog.Any("error", err))
		r := reply.MediaFailed()
		return &r
	}

	rec, err := record.ForMedia(ev.SourceUserID, string(att.Kind), ev.Raw, stored)
	if err != nil {
		stats.PersistFailures++
		log.Warn("build media record failed", slog.Any("error", err))
	} else {
		p.persist(ctx, log, rec, stats)
	}
	r := reply.MediaStored()
	return &r
}

func (p *Pipeline) persist(ctx context.Context, log *slog.Logger, rec record.Record, stats *Stats) {
	if p.opts.Records == nil {
		return
	}
	if err := p.opts.Records.Insert(ctx, rec); err != nil {
		stats.PersistFailures++
		log.Warn("insert record failed", slog.String("event_type", rec.EventType), slog.Any("error", err))
	}
}

func (p *Pipeline) send(ctx context.Context, log *slog.Logger, replyToken string, r reply.Reply) bool {
	if replyToken == "" {
		log.Debug("reply skipped: no reply token")
		return false
	}
	if p.opts.Sender == nil {
		log.Warn("reply skipped: channel access token is not configured")
		return false
	}
	if err := p.opts.Sender.Reply(ctx, replyToken, reply.ToLINE(r)); err != nil {
		log.Warn("send reply failed", slog.Any("error", err))
		return false
	}
	return true
}
