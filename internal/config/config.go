// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"sdrprov/internal/issue"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "sdrprov"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// EnvPrefix prefixes environment variables that override config keys.
	EnvPrefix = "SDRPROV"
	// DotEnvFile is loaded from the working directory when present.
	DotEnvFile = ".env"
)

// configExtensions lists supported config formats in lookup order.
var configExtensions = []string{"cue", "toml"} //nolint:gochecknoglobals // constant lookup table

// ConfigDir returns the sdrprov configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := loadDotEnv(opts.DotEnvPath); err != nil {
		return nil, "", loadError(opts.DotEnvPath, err, "Check the KEY=value syntax of the .env file")
	}

	v := viper.New()
	setDefaults(v, DefaultConfig(opts.Privileged))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadFileIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err,
				"Check that the file contains valid "+strings.ToUpper(strings.TrimPrefix(filepath.Ext(resolvedPath), "."))+" syntax",
				"Verify the configuration values match the expected schema")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", loadError(resolvedPath, fmt.Errorf("failed to parse config: %w", err))
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Unset the offending SDRPROV_* variable or fix the config file").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("install_root", d.InstallRoot.String())
	v.SetDefault("prefix", d.Prefix.String())
	v.SetDefault("venv_dir", d.VenvDir.String())
	v.SetDefault("requirements_file", d.RequirementsFile)
	v.SetDefault("network.attempt_timeout", d.Network.AttemptTimeout)
	v.SetDefault("network.max_attempts", d.Network.MaxAttempts)
	v.SetDefault("network.retry_delay", d.Network.RetryDelay)
	v.SetDefault("network.clone_timeout", d.Network.CloneTimeout)
	v.SetDefault("network.user_agent", d.Network.UserAgent)
	v.SetDefault("mirrors.pins_file", d.Mirrors.PinsFile)
	v.SetDefault("mirrors.s3.endpoint", d.Mirrors.S3.Endpoint)
	v.SetDefault("mirrors.s3.region", d.Mirrors.S3.Region)
	v.SetDefault("mirrors.s3.access_key", d.Mirrors.S3.AccessKey)
	v.SetDefault("mirrors.s3.secret_key", d.Mirrors.S3.SecretKey)
	v.SetDefault("mirrors.s3.use_ssl", d.Mirrors.S3.UseSSL)
	v.SetDefault("ui.color_scheme", d.UI.ColorScheme.String())
	v.SetDefault("ui.verbose", d.UI.Verbose)
}

// resolveConfigFile returns the explicit file, else the first config.cue or
// config.toml in the config directory, else in the working directory.
// An empty result means defaults only.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	for _, dir := range []string{cfgDir, "."} {
		for _, ext := range configExtensions {
			candidate := filepath.Join(dir, ConfigFileName+"."+ext)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}
	return "", nil
}

// loadFileIntoViper validates path against #Config and merges it into v.
func loadFileIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := checkFileSize(data, path); err != nil {
		return err
	}

	var doc map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw map[string]any
		if err := toml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		doc, err = validateMap(raw, path)
	case ".cue":
		doc, err = validateCUE(data, path)
	default:
		return fmt.Errorf("%s: unsupported config format (use .cue or .toml)", path)
	}
	if err != nil {
		return err
	}

	// Merging preserves defaults and keeps env overrides on top.
	if err := v.MergeConfigMap(doc); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// loadDotEnv exports variables from a .env file without overriding
// variables already set in the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		path = DotEnvFile
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func loadError(resource string, err error, suggestions ...string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(resource).
		WithSuggestions(suggestions...).
		WithIssue(issue.ConfigLoadFailedId).
		Wrap(err).
		BuildError()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
