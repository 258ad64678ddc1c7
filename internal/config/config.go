package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultDotEnvPath     = ".env"
	DefaultHTTPAddr       = ":8080"
	DefaultWebhookPath    = "/webhook/line"
	DefaultMaxBodyBytes   = 1 << 20
	DefaultBucket         = "nextplot"
	DefaultRecordsTable   = "messages"
	DefaultSignedURLTTL   = time.Hour
	DefaultMediaMaxBytes  = 50 << 20
	DefaultEventTimeout   = 20 * time.Second
	DefaultRequestTimeout = 30 * time.Second
	DefaultSQLitePath     = "data/nextplot.db"
	DefaultLocalFSRoot    = "data/media"
	DefaultLINEAPIBase    = "https://api.line.me"
	DefaultLINEDataBase   = "https://api-data.line.me"
	DefaultPruneSchedule  = "@daily"
)

// Record sink drivers.
const (
	RecordDriverPostgREST = "postgrest"
	RecordDriverPostgres  = "postgres"
	RecordDriverSQLite    = "sqlite"
)

// Media store drivers.
const (
	MediaDriverSupabase = "supabase"
	MediaDriverLocalFS  = "localfs"
)

// Malformed payload policies.
const (
	InvalidJSONAck    = "ack"
	InvalidJSONReject = "reject"
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	LINE     LINEConfig     `toml:"line"`
	Supabase SupabaseConfig `toml:"supabase"`
	Records  RecordsConfig  `toml:"records"`
	Media    MediaConfig    `toml:"media"`
	Forward  ForwardConfig  `toml:"forward"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `toml:"format" env:"LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr         string `toml:"addr" env:"HTTP_ADDR" validate:"required"`
	WebhookPath  string `toml:"webhook_path" env:"WEBHOOK_PATH" validate:"required,startswith=/"`
	MaxBodyBytes int64  `toml:"max_body_bytes" env:"MAX_BODY_BYTES" validate:"gt=0"`
}

type LINEConfig struct {
	ChannelSecret      string   `toml:"channel_secret" env:"LINE_CHANNEL_SECRET"`
	ChannelAccessToken string   `toml:"channel_access_token" env:"LINE_CHANNEL_ACCESS_TOKEN"`
	SignatureRelaxed   Flag     `toml:"signature_relaxed" env:"LINE_SIGNATURE_RELAXED"`
	AllowList          []string `toml:"allowlist" env:"LINE_USER_ID_ALLOWLIST" envSeparator:","`
	APIBase            string   `toml:"api_base" env:"LINE_API_BASE" validate:"required,url"`
	DataAPIBase        string   `toml:"data_api_base" env:"LINE_DATA_API_BASE" validate:"required,url"`
}

type SupabaseConfig struct {
	URL            string        `toml:"url" env:"SUPABASE_URL" validate:"omitempty,url"`
	PublishableKey string        `toml:"publishable_key" env:"SUPABASE_SB_PUBLISHABLE"`
	SecretKey      string        `toml:"secret_key" env:"SUPABASE_SB_SECRET"`
	Timeout        time.Duration `toml:"timeout" env:"SUPABASE_TIMEOUT"`
}

type RecordsConfig struct {
	Driver      string `toml:"driver" env:"RECORD_DRIVER" validate:"oneof=postgrest postgres sqlite"`
	Table       string `toml:"table" env:"RECORD_TABLE" validate:"required"`
	DatabaseURL string `toml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `toml:"sqlite_path" env:"SQLITE_PATH"`
}

type MediaConfig struct {
	Driver       string        `toml:"driver" env:"MEDIA_DRIVER" validate:"oneof=supabase localfs"`
	Bucket       string        `toml:"bucket" env:"SUPABASE_BUCKET_NAME" validate:"required"`
	SignedURLTTL time.Duration `toml:"signed_url_ttl" env:"SIGNED_URL_TTL" validate:"gt=0"`
	MaxBytes     int64         `toml:"max_bytes" env:"MEDIA_MAX_BYTES" validate:"gt=0"`
	LocalRoot    string        `toml:"local_root" env:"MEDIA_LOCAL_ROOT"`
	PublicURL    string        `toml:"public_url" env:"MEDIA_PUBLIC_URL" validate:"omitempty,url"`
	// SigningKey signs localfs links; a random key is generated at startup
	// when empty, so links do not survive restarts.
	SigningKey string `toml:"signing_key" env:"MEDIA_SIGNING_KEY"`
	// Retention prunes localfs objects older than this; zero keeps everything.
	Retention     time.Duration `toml:"retention" env:"MEDIA_RETENTION" validate:"gte=0"`
	PruneSchedule string        `toml:"prune_schedule" env:"MEDIA_PRUNE_SCHEDULE"`
}

type ForwardConfig struct {
	URL     string        `toml:"url" env:"FORWARD_URL" validate:"omitempty,url"`
	Timeout time.Duration `toml:"timeout" env:"FORWARD_TIMEOUT"`
}

type PipelineConfig struct {
	EventTimeout      time.Duration `toml:"event_timeout" env:"EVENT_TIMEOUT" validate:"gt=0"`
	InvalidJSONPolicy string        `toml:"invalid_json_policy" env:"INVALID_JSON_POLICY" validate:"oneof=ack reject"`
}

// Flag is a boolean that also accepts "yes"/"no" and "on"/"off".
type Flag bool

func (f *Flag) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "true", "1", "yes", "on", "t", "y":
		*f = true
	case "false", "0", "no", "off", "f", "n", "":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %q", string(text))
	}
	return nil
}

// Bool returns the flag as a plain bool.
func (f Flag) Bool() bool { return bool(f) }

// Defaults returns the configuration used when no file or env overrides exist.
func Defaults() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr:         DefaultHTTPAddr,
			WebhookPath:  DefaultWebhookPath,
			MaxBodyBytes: DefaultMaxBodyBytes,
		},
		LINE: LINEConfig{
			APIBase:     DefaultLINEAPIBase,
			DataAPIBase: DefaultLINEDataBase,
		},
		Supabase: SupabaseConfig{
			Timeout: DefaultRequestTimeout,
		},
		Records: RecordsConfig{
			Driver:     RecordDriverPostgREST,
			Table:      DefaultRecordsTable,
			SQLitePath: DefaultSQLitePath,
		},
		Media: MediaConfig{
			Driver:        MediaDriverSupabase,
			Bucket:        DefaultBucket,
			SignedURLTTL:  DefaultSignedURLTTL,
			MaxBytes:      DefaultMediaMaxBytes,
			LocalRoot:     DefaultLocalFSRoot,
			PruneSchedule: DefaultPruneSchedule,
		},
		Forward: ForwardConfig{
			Timeout: DefaultRequestTimeout,
		},
		Pipeline: PipelineConfig{
			EventTimeout:      DefaultEventTimeout,
			InvalidJSONPolicy: InvalidJSONAck,
		},
	}
}

// Load reads path (default config.toml; a missing file means defaults),
// loads .env into the process environment without overriding existing
// variables, applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := loadDotEnv(DefaultDotEnvPath); err != nil {
		return cfg, err
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.LINE.ChannelSecret = strings.TrimSpace(c.LINE.ChannelSecret)
	c.LINE.ChannelAccessToken = strings.TrimSpace(c.LINE.ChannelAccessToken)
	c.LINE.AllowList = SplitList(strings.Join(c.LINE.AllowList, ","))
	c.Supabase.URL = strings.TrimRight(strings.TrimSpace(c.Supabase.URL), "/")
	c.Records.Driver = strings.ToLower(strings.TrimSpace(c.Records.Driver))
	c.Media.Driver = strings.ToLower(strings.TrimSpace(c.Media.Driver))
	c.Pipeline.InvalidJSONPolicy = strings.ToLower(strings.TrimSpace(c.Pipeline.InvalidJSONPolicy))
}

var validate = validator.New()

// Validate checks field constraints and driver-specific requirements.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	needsSupabase := c.Records.Driver == RecordDriverPostgREST || c.Media.Driver == MediaDriverSupabase
	if needsSupabase && c.Supabase.URL == "" {
		errs = append(errs, errors.New("supabase.url is required for the postgrest and supabase drivers"))
	}
	if c.Records.Driver == RecordDriverPostgres && strings.TrimSpace(c.Records.DatabaseURL) == "" {
		errs = append(errs, errors.New("records.database_url is required for the postgres driver"))
	}
	if c.Records.Driver == RecordDriverSQLite && strings.TrimSpace(c.Records.SQLitePath) == "" {
		errs = append(errs, errors.New("records.sqlite_path is required for the sqlite driver"))
	}
	if c.Media.Driver == MediaDriverLocalFS && strings.TrimSpace(c.Media.LocalRoot) == "" {
		errs = append(errs, errors.New("media.local_root is required for the localfs driver"))
	}
	return errors.Join(errs...)
}

// SignatureEnforced reports whether requests must carry a valid signature.
func (c LINEConfig) SignatureEnforced() bool {
	return !c.SignatureRelaxed.Bool()
}

// AcceptsNothing reports the strict-mode state in which every request is
// rejected because no channel secret is configured.
func (c LINEConfig) AcceptsNothing() bool {
	return c.SignatureEnforced() && c.ChannelSecret == ""
}

// SplitList splits a comma-separated list, trimming entries and dropping empties.
func SplitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
