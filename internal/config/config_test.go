package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"redspec/internal/testdb"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		EnvHost:     "some.db.host",
		EnvUser:     "some_user",
		EnvPassword: "s0m3_p4ssw0rd",
		EnvDatabase: "some_db",
	}))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "5439", cfg.Port)
	require.Equal(t, testdb.DriverPgx, cfg.Driver)
	require.True(t, cfg.DeleteOnFinish)
	require.False(t, cfg.ShowOutput)
	require.Equal(t, 3, cfg.DropAttempts)
	require.Equal(t, 5*time.Second, cfg.DropDelay)

	opts := cfg.TestDBOptions(slog.Default())
	require.Equal(t, "some_user", opts.TestUser)
	require.Equal(t, testdb.ConnParams{
		Driver:   testdb.DriverPgx,
		Host:     "some.db.host",
		Port:     "5439",
		Database: "some_db",
		User:     "some_user",
		Password: "s0m3_p4ssw0rd",
	}, opts.Params)
	require.Equal(t, 3, opts.Retry.MaxAttempts)
	require.NotNil(t, opts.Retry.IsBusy)
}

func TestFromEnvFlags(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		wantDelete bool
		wantShow   bool
		override   string
	}{
		{name: "keep", env: map[string]string{EnvKeepTestDB: "1"}, wantDelete: false},
		{name: "keep zero", env: map[string]string{EnvKeepTestDB: "0"}, wantDelete: true},
		{name: "keep garbage", env: map[string]string{EnvKeepTestDB: "yes"}, wantDelete: true},
		{name: "show output", env: map[string]string{EnvShowStdout: "1"}, wantDelete: true, wantShow: true},
		{name: "override", env: map[string]string{EnvNameOverride: " acme "}, wantDelete: true, override: "acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(envOf(tt.env))
			require.NoError(t, err)
			require.Equal(t, tt.wantDelete, cfg.DeleteOnFinish)
			require.Equal(t, tt.wantShow, cfg.ShowOutput)
			require.Equal(t, tt.override, cfg.NameOverride)
		})
	}
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{name: "driver", env: map[string]string{EnvDriver: "oracle"}, want: EnvDriver},
		{name: "attempts", env: map[string]string{EnvDropAttempts: "0"}, want: EnvDropAttempts},
		{name: "delay", env: map[string]string{EnvDropDelay: "soon"}, want: EnvDropDelay},
		{name: "log level", env: map[string]string{EnvLogLevel: "loud"}, want: EnvLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(envOf(tt.env))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Host: "h", User: "u", Database: "d", Port: "5439"}
	require.NoError(t, cfg.Validate())

	missingHost := cfg
	missingHost.Host = ""
	require.ErrorContains(t, missingHost.Validate(), EnvHost)

	badPort := cfg
	badPort.Port = "redshift"
	require.ErrorContains(t, badPort.Validate(), EnvPort)
}

func TestNormalizeDriver(t *testing.T) {
	tests := []struct {
		in      string
		out     string
		wantErr bool
	}{
		{in: "", out: testdb.DriverPgx},
		{in: "pgx", out: testdb.DriverPgx},
		{in: "postgres", out: testdb.DriverPq},
		{in: "PostgreSQL", out: testdb.DriverPq},
		{in: "pq", out: testdb.DriverPq},
		{in: "mysql", wantErr: true},
	}

	for _, tt := range tests {
		got, err := NormalizeDriver(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for input %q", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.in, err)
		}
		if got != tt.out {
			t.Fatalf("expected %q, got %q", tt.out, got)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret(""); got != "" {
		t.Fatalf("expected empty secret to stay empty, got %q", got)
	}
	if got := MaskSecret("12345678"); got != "********" {
		t.Fatalf("expected full masking for short secret, got %q", got)
	}
	if got := MaskSecret("s0m3_p4ssw0rd"); got != "s0m3*****w0rd" {
		t.Fatalf("unexpected masked output: %q", got)
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "REDSHIFT_HOST=from-file\nTEST_DB_NAME_OVERRIDE=filed\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env fixture: %v", err)
	}

	t.Setenv(EnvHost, "from-env")
	t.Setenv(EnvNameOverride, "")
	os.Unsetenv(EnvNameOverride)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Host, "real environment wins over the file")
	require.Equal(t, "filed", cfg.NameOverride)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.ErrorContains(t, err, "load env file")
}

func TestLoadWithoutDefaultEnvFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(EnvHost, "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Host)
}
