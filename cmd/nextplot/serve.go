package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/nextplot/internal/config"
	"github.com/memohai/nextplot/internal/db"
	"github.com/memohai/nextplot/internal/forward"
	"github.com/memohai/nextplot/internal/handlers"
	"github.com/memohai/nextplot/internal/healthcheck"
	"github.com/memohai/nextplot/internal/inbound"
	"github.com/memohai/nextplot/internal/line"
	"github.com/memohai/nextplot/internal/logger"
	"github.com/memohai/nextplot/internal/media"
	"github.com/memohai/nextplot/internal/media/providers/localfs"
	supabasestore "github.com/memohai/nextplot/internal/media/providers/supabase"
	"github.com/memohai/nextplot/internal/pipeline"
	"github.com/memohai/nextplot/internal/record"
	"github.com/memohai/nextplot/internal/record/postgres"
	"github.com/memohai/nextplot/internal/record/postgrest"
	"github.com/memohai/nextplot/internal/record/sqlite"
	"github.com/memohai/nextplot/internal/retention"
	"github.com/memohai/nextplot/internal/server"
	"github.com/memohai/nextplot/internal/supabase"
	"github.com/memohai/nextplot/internal/version"
)

func runServe(cfgPath string) {
	fx.New(
		fx.Provide(
			func() (config.Config, error) { return provideConfig(cfgPath) },
			provideLogger,
			provideRecordWriter,
			provideObjectStores,
			provideLINEClient,
			provideIngestor,
			provideForwarder,
			providePipeline,
			provideHealthChecks,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(provideMediaHandler),
			provideServer,
		),
		fx.Invoke(
			warnUnsafeConfig,
			startRetention,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func newSupabaseClient(cfg config.Config) *resty.Client {
	return supabase.NewClient(supabase.Options{
		URL:            cfg.Supabase.URL,
		PublishableKey: cfg.Supabase.PublishableKey,
		SecretKey:      cfg.Supabase.SecretKey,
		Timeout:        cfg.Supabase.Timeout,
	})
}

func provideRecordWriter(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (record.Writer, error) {
	switch cfg.Records.Driver {
	case config.RecordDriverPostgres:
		pool, err := db.Open(context.Background(), cfg.Records.DatabaseURL)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { pool.Close(); return nil }})
		return postgres.New(log, pool, cfg.Records.Table)
	case config.RecordDriverSQLite:
		w, err := sqlite.Open(log, cfg.Records.SQLitePath, cfg.Records.Table)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return w.Close() }})
		return w, nil
	default:
		return postgrest.New(log, newSupabaseClient(cfg), cfg.Records.Table)
	}
}

type objectStores struct {
	fx.Out
	Store media.ObjectStore
	Local *localfs.Provider
}

func provideObjectStores(log *slog.Logger, cfg config.Config) (objectStores, error) {
	if cfg.Media.Driver == config.MediaDriverLocalFS {
		key := cfg.Media.SigningKey
		if key == "" {
			key = uuid.NewString()
			log.Warn("media.signing_key is not set; local media links will not survive a restart")
		}
		p, err := localfs.New(cfg.Media.LocalRoot, cfg.Media.PublicURL, key)
		if err != nil {
			return objectStores{}, err
		}
		return objectStores{Store: p, Local: p}, nil
	}
	p, err := supabasestore.New(newSupabaseClient(cfg))
	if err != nil {
		return objectStores{}, err
	}
	return objectStores{Store: p}, nil
}

func provideLINEClient(log *slog.Logger, cfg config.Config) (*line.Client, error) {
	if cfg.LINE.ChannelAccessToken == "" {
		return nil, nil
	}
	return line.NewClient(log, line.Options{
		AccessToken: cfg.LINE.ChannelAccessToken,
		APIBase:     cfg.LINE.APIBase,
		DataAPIBase: cfg.LINE.DataAPIBase,
	})
}

func provideIngestor(log *slog.Logger, cfg config.Config, client *line.Client, store media.ObjectStore) pipeline.MediaIngestor {
	if client == nil {
		return nil
	}
	return media.NewIngestor(log, client, store, media.IngestorOptions{
		Bucket:       cfg.Media.Bucket,
		SignedURLTTL: cfg.Media.SignedURLTTL,
		MaxBytes:     cfg.Media.MaxBytes,
	})
}

func provideForwarder(log *slog.Logger, cfg config.Config) (pipeline.PayloadForwarder, error) {
	if cfg.Forward.URL == "" {
		return nil, nil
	}
	return forward.New(log, cfg.Forward.URL, cfg.Forward.Timeout)
}

func providePipeline(log *slog.Logger, cfg config.Config, writer record.Writer, ingestor pipeline.MediaIngestor, client *line.Client, forwarder pipeline.PayloadForwarder) *pipeline.Pipeline {
	opts := pipeline.Options{
		Secret:       cfg.LINE.ChannelSecret,
		Relaxed:      cfg.LINE.SignatureRelaxed.Bool(),
		Allowlist:    inbound.NewAllowlist(cfg.LINE.AllowList),
		EventTimeout: cfg.Pipeline.EventTimeout,
		Records:      writer,
		Ingestor:     ingestor,
		Forwarder:    forwarder,
	}
	if client != nil {
		opts.Sender = client
	}
	return pipeline.New(log, opts)
}

func provideHealthChecks(log *slog.Logger, cfg config.Config, writer record.Writer) []healthcheck.Checker {
	var checks []healthcheck.Checker
	if p, ok := writer.(healthcheck.Pinger); ok {
		checks = append(checks, healthcheck.NewPingChecker(log, "records."+cfg.Records.Driver, p, 0))
	}
	return checks
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, p *pipeline.Pipeline) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, p, handlers.WebhookOptions{
		Path:            cfg.Server.WebhookPath,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		RejectMalformed: cfg.Pipeline.InvalidJSONPolicy == config.InvalidJSONReject,
	})
}

func provideMediaHandler(log *slog.Logger, local *localfs.Provider) *handlers.MediaHandler {
	if local == nil {
		return handlers.NewMediaHandler(log, nil)
	}
	return handlers.NewMediaHandler(log, local)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func warnUnsafeConfig(log *slog.Logger, cfg config.Config) {
	switch {
	case cfg.LINE.AcceptsNothing():
		log.Warn("line.channel_secret is empty and signature checks are enforced; every webhook request will be rejected")
	case !cfg.LINE.SignatureEnforced():
		log.Warn("signature verification is relaxed; do not run this way in production")
	}
	if cfg.LINE.ChannelAccessToken == "" {
		log.Warn("line.channel_access_token is empty; replies and media ingestion are disabled")
	}
}

func startRetention(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, local *localfs.Provider) error {
	if local == nil || cfg.Media.Retention <= 0 {
		return nil
	}
	job, err := retention.New(log, local, cfg.Media.Bucket, cfg.Media.Retention, cfg.Media.PruneSchedule)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { job.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return job.Stop(ctx) },
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	logger.Info("starting nextplot", slog.String("version", version.GetInfo()))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
