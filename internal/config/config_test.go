// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sdrprov/internal/issue"
	"sdrprov/internal/testutil"
)

// isolate points the config directory and working directory at empty temp
// dirs so that no file on the host leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	SetConfigDirOverride(filepath.Join(dir, "config"))
	t.Cleanup(Reset)
	t.Chdir(t.TempDir())
	return dir
}

func load(t *testing.T, opts LoadOptions) *Config {
	t.Helper()
	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cfg
}

//nolint:paralleltest // changes the working directory
func TestLoad_DefaultsOnly(t *testing.T) {
	isolate(t)

	cfg := load(t, LoadOptions{Privileged: true})
	if cfg.Source != "" {
		t.Errorf("Source = %q, want none", cfg.Source)
	}
	if cfg.VenvDir != DefaultVenvDir {
		t.Errorf("VenvDir = %q, want %q", cfg.VenvDir, DefaultVenvDir)
	}
	if cfg.RequirementsFile != DefaultRequirementsFile {
		t.Errorf("RequirementsFile = %q, want %q", cfg.RequirementsFile, DefaultRequirementsFile)
	}
	if cfg.Network.AttemptTimeout != 5*time.Minute {
		t.Errorf("AttemptTimeout = %s, want 5m", cfg.Network.AttemptTimeout)
	}
	if cfg.Network.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Network.MaxAttempts)
	}
	if cfg.Network.CloneTimeout != 10*time.Minute {
		t.Errorf("CloneTimeout = %s, want 10m", cfg.Network.CloneTimeout)
	}
	if !cfg.Mirrors.S3.UseSSL {
		t.Error("S3 mirrors should default to TLS")
	}
	if cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("ColorScheme = %q, want auto", cfg.UI.ColorScheme)
	}
}

//nolint:paralleltest // changes the working directory
func TestLoad_CUEFile(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, "config")
	testutil.MustMkdirAll(t, cfgDir, 0o755)
	testutil.MustWriteFile(t, filepath.Join(cfgDir, "config.cue"), `
install_root: "/srv/sdr"
network: {
	attempt_timeout: "90s"
	max_attempts:    5
}
ui: verbose: true
`)

	cfg := load(t, LoadOptions{})
	if cfg.Source != filepath.Join(cfgDir, "config.cue") {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.InstallRoot != "/srv/sdr" {
		t.Errorf("InstallRoot = %q, want /srv/sdr", cfg.InstallRoot)
	}
	if cfg.Network.AttemptTimeout != 90*time.Second {
		t.Errorf("AttemptTimeout = %s, want 90s", cfg.Network.AttemptTimeout)
	}
	if cfg.Network.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.Network.MaxAttempts)
	}
	if cfg.Network.CloneTimeout != 10*time.Minute {
		t.Errorf("unset keys should keep defaults, CloneTimeout = %s", cfg.Network.CloneTimeout)
	}
	if !cfg.UI.Verbose {
		t.Error("expected verbose from file")
	}
}

//nolint:paralleltest // changes the working directory
func TestLoad_TOMLFileInWorkingDirectory(t *testing.T) {
	isolate(t)
	testutil.MustWriteFile(t, "config.toml", `
venv_dir = "env"

[mirrors]
pins_file = "pins.sha256"

[mirrors.s3]
endpoint = "minio.lab:9000"
use_ssl = false
`)

	cfg := load(t, LoadOptions{})
	if cfg.Source != filepath.Join(".", "config.toml") {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.VenvDir != "env" {
		t.Errorf("VenvDir = %q, want env", cfg.VenvDir)
	}
	if cfg.Mirrors.PinsFile != "pins.sha256" {
		t.Errorf("PinsFile = %q", cfg.Mirrors.PinsFile)
	}
	if !cfg.Mirrors.S3.Enabled() || cfg.Mirrors.S3.UseSSL {
		t.Errorf("S3 = %+v, want plain-HTTP endpoint", cfg.Mirrors.S3)
	}
}

//nolint:paralleltest // changes the working directory
func TestLoad_SchemaViolation(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"cue bad scheme", "config.cue", `ui: color_scheme: "neon"`, "ui.color_scheme"},
		{"cue unknown key", "config.cue", `container_engine: "podman"`, "container_engine"},
		{"cue bad duration", "config.cue", `network: attempt_timeout: "soon"`, "network.attempt_timeout"},
		{"toml attempts out of range", "config.toml", "[network]\nmax_attempts = 50\n", "network.max_attempts"},
		{"toml syntax", "config.toml", "install_root = \n", "config.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			testutil.MustWriteFile(t, tt.file, tt.content)

			_, err := NewProvider().Load(context.Background(), LoadOptions{})
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
			if is := issue.IssueOf(err); is == nil || is.Id() != issue.ConfigLoadFailedId {
				t.Error("error should link the config issue")
			}
		})
	}
}

//nolint:paralleltest // changes the working directory
func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolate(t)

	_, err := NewProvider().Load(context.Background(), LoadOptions{ConfigFilePath: "nope.cue"})
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("expected ActionableError, got %v", err)
	}
	if ae.Resource != "nope.cue" {
		t.Errorf("Resource = %q, want nope.cue", ae.Resource)
	}
}

//nolint:paralleltest // changes the working directory
func TestLoad_ExplicitFileWinsOverConfigDir(t *testing.T) {
	dir := isolate(t)
	cfgDir := filepath.Join(dir, "config")
	testutil.MustMkdirAll(t, cfgDir, 0o755)
	testutil.MustWriteFile(t, filepath.Join(cfgDir, "config.cue"), `venv_dir: "from-dir"`)
	explicit := filepath.Join(dir, "other.toml")
	testutil.MustWriteFile(t, explicit, `venv_dir = "from-flag"`)

	cfg := load(t, LoadOptions{ConfigFilePath: explicit})
	if cfg.VenvDir != "from-flag" {
		t.Errorf("VenvDir = %q, want from-flag", cfg.VenvDir)
	}
}

//nolint:paralleltest // uses t.Setenv
func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	testutil.MustWriteFile(t, "config.cue", `network: retry_delay: "1s"`)
	t.Setenv("SDRPROV_NETWORK_RETRY_DELAY", "250ms")
	t.Setenv("SDRPROV_UI_VERBOSE", "true")

	cfg := load(t, LoadOptions{})
	if cfg.Network.RetryDelay != 250*time.Millisecond {
		t.Errorf("RetryDelay = %s, want 250ms", cfg.Network.RetryDelay)
	}
	if !cfg.UI.Verbose {
		t.Error("SDRPROV_UI_VERBOSE should enable verbose")
	}
}

//nolint:paralleltest // modifies the process environment
func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	const key = "SDRPROV_REQUIREMENTS_FILE"
	t.Cleanup(func() { _ = os.Unsetenv(key) })
	testutil.MustWriteFile(t, ".env", key+"=deps/requirements.txt\n")

	cfg := load(t, LoadOptions{})
	if cfg.RequirementsFile != "deps/requirements.txt" {
		t.Errorf("RequirementsFile = %q, want value from .env", cfg.RequirementsFile)
	}
}

//nolint:paralleltest // uses t.Setenv
func TestLoad_InvalidEnvValue(t *testing.T) {
	isolate(t)
	t.Setenv("SDRPROV_NETWORK_MAX_ATTEMPTS", "0")

	_, err := NewProvider().Load(context.Background(), LoadOptions{})
	if !errors.Is(err, ErrInvalidNetworkConfig) {
		t.Fatalf("expected ErrInvalidNetworkConfig, got %v", err)
	}
}

func TestLoad_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, LoadOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"ui"}, "ui"},
		{[]string{"mirrors", "s3", "use_ssl"}, "mirrors.s3.use_ssl"},
		{[]string{"list", "0", "name"}, "list[0].name"},
	}
	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	if err := checkFileSize(make([]byte, maxConfigFileSize), "a.cue"); err != nil {
		t.Errorf("file at the limit should pass: %v", err)
	}
	err := checkFileSize(make([]byte, maxConfigFileSize+1), "a.cue")
	if err == nil || !strings.Contains(err.Error(), "a.cue") {
		t.Errorf("expected size error naming the file, got %v", err)
	}
}
