package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultWebhookPath, cfg.Server.WebhookPath)
	assert.Equal(t, RecordDriverPostgREST, cfg.Records.Driver)
	assert.Equal(t, MediaDriverSupabase, cfg.Media.Driver)
	assert.Equal(t, DefaultBucket, cfg.Media.Bucket)
	assert.Equal(t, time.Hour, cfg.Media.SignedURLTTL)
	assert.Equal(t, InvalidJSONAck, cfg.Pipeline.InvalidJSONPolicy)
	assert.True(t, cfg.LINE.SignatureEnforced())
	assert.True(t, cfg.LINE.AcceptsNothing())
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"

[line]
channel_secret = "file-secret"
allowlist = ["U1", " U2 ", ""]

[records]
driver = "sqlite"
sqlite_path = "/tmp/records.db"

[media]
driver = "localfs"
local_root = "/tmp/media"
signed_url_ttl = "30m"

[pipeline]
event_timeout = "5s"
invalid_json_policy = "reject"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "file-secret", cfg.LINE.ChannelSecret)
	assert.Equal(t, []string{"U1", "U2"}, cfg.LINE.AllowList)
	assert.Equal(t, RecordDriverSQLite, cfg.Records.Driver)
	assert.Equal(t, 30*time.Minute, cfg.Media.SignedURLTTL)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.EventTimeout)
	assert.Equal(t, InvalidJSONReject, cfg.Pipeline.InvalidJSONPolicy)
	assert.False(t, cfg.LINE.AcceptsNothing())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[line]
channel_secret = "file-secret"

[records]
driver = "sqlite"

[media]
driver = "localfs"
`)
	t.Setenv("LINE_CHANNEL_SECRET", "env-secret")
	t.Setenv("LINE_SIGNATURE_RELAXED", "yes")
	t.Setenv("LINE_USER_ID_ALLOWLIST", "Uaaa, Ubbb,,")
	t.Setenv("SUPABASE_BUCKET_NAME", "plots")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.LINE.ChannelSecret)
	assert.True(t, cfg.LINE.SignatureRelaxed.Bool())
	assert.False(t, cfg.LINE.SignatureEnforced())
	assert.Equal(t, []string{"Uaaa", "Ubbb"}, cfg.LINE.AllowList)
	assert.Equal(t, "plots", cfg.Media.Bucket)
}

func TestLoad_InvalidDriverRejected(t *testing.T) {
	path := writeConfig(t, `
[records]
driver = "mongo"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate_DriverRequirements(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "postgrest without supabase url",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Records.Driver = RecordDriverPostgres
				c.Media.Driver = MediaDriverLocalFS
			},
			wantErr: true,
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.Records.Driver = RecordDriverPostgres
				c.Records.DatabaseURL = "postgres://localhost/nextplot"
				c.Media.Driver = MediaDriverLocalFS
			},
		},
		{
			name: "supabase everything",
			mutate: func(c *Config) {
				c.Supabase.URL = "https://example.supabase.co"
			},
		},
		{
			name: "bad invalid json policy",
			mutate: func(c *Config) {
				c.Supabase.URL = "https://example.supabase.co"
				c.Pipeline.InvalidJSONPolicy = "drop"
			},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFlag_UnmarshalText(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"true", "1", "YES", "on"} {
		var f Flag
		require.NoError(t, f.UnmarshalText([]byte(in)))
		assert.True(t, f.Bool(), in)
	}
	for _, in := range []string{"false", "0", "no", "off", ""} {
		f := Flag(true)
		require.NoError(t, f.UnmarshalText([]byte(in)))
		assert.False(t, f.Bool(), in)
	}
	var f Flag
	assert.Error(t, f.UnmarshalText([]byte("maybe")))
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,, b ,"))
	assert.Empty(t, SplitList(""))
}
