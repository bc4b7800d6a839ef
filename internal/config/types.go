// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// DefaultVenvDir is the project-local isolated environment directory.
	DefaultVenvDir = ".venv"
	// DefaultRequirementsFile is the Python manifest in the working directory.
	DefaultRequirementsFile = "requirements.txt"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidDirPath is the sentinel error wrapped by InvalidDirPathError.
	ErrInvalidDirPath = errors.New("invalid directory path")
	// ErrInvalidNetworkConfig is the sentinel error wrapped by InvalidNetworkConfigError.
	ErrInvalidNetworkConfig = errors.New("invalid network config")
	// ErrInvalidS3Config is returned when only one half of the S3 credentials is set.
	ErrInvalidS3Config = errors.New("invalid s3 mirror config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// DirPath is a filesystem path that must not be blank.
	DirPath string

	// InvalidDirPathError is returned when a DirPath is empty or
	// whitespace-only. It wraps ErrInvalidDirPath for errors.Is().
	InvalidDirPathError struct {
		Field string
		Value DirPath
	}

	// InvalidNetworkConfigError collects field-level errors of a NetworkConfig.
	InvalidNetworkConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// InstallRoot holds tools/ and build-cache/.
		InstallRoot DirPath `json:"install_root" mapstructure:"install_root"`
		// Prefix is passed to ./configure for source builds.
		Prefix DirPath `json:"prefix" mapstructure:"prefix"`
		// VenvDir is the project-local isolated environment.
		VenvDir DirPath `json:"venv_dir" mapstructure:"venv_dir"`
		// RequirementsFile is passed verbatim to pip install -r.
		RequirementsFile string        `json:"requirements_file" mapstructure:"requirements_file"`
		Network          NetworkConfig `json:"network" mapstructure:"network"`
		Mirrors          MirrorsConfig `json:"mirrors" mapstructure:"mirrors"`
		UI               UIConfig      `json:"ui" mapstructure:"ui"`

		// Source is the config file that was loaded, empty for defaults only.
		Source string `json:"-" mapstructure:"-"`
	}

	// NetworkConfig bounds downloads and clones.
	NetworkConfig struct {
		// AttemptTimeout bounds a single download attempt.
		AttemptTimeout time.Duration `json:"attempt_timeout" mapstructure:"attempt_timeout"`
		// MaxAttempts is the retry budget for transient transport errors.
		MaxAttempts int `json:"max_attempts" mapstructure:"max_attempts"`
		// RetryDelay is the initial backoff between attempts.
		RetryDelay time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
		// CloneTimeout bounds a single repository clone.
		CloneTimeout time.Duration `json:"clone_timeout" mapstructure:"clone_timeout"`
		UserAgent    string        `json:"user_agent" mapstructure:"user_agent"`
	}

	// MirrorsConfig configures optional mirror sources.
	MirrorsConfig struct {
		// PinsFile lists expected SHA256 digests in sha256sum layout.
		PinsFile string   `json:"pins_file" mapstructure:"pins_file"`
		S3       S3Config `json:"s3" mapstructure:"s3"`
	}

	// S3Config configures s3:// mirror URLs.
	S3Config struct {
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		Region    string `json:"region" mapstructure:"region"`
		AccessKey string `json:"access_key" mapstructure:"access_key"`
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}
)

// DefaultConfig returns the default configuration. Privileged runs install
// machine-wide; others install under the user's data directory.
func DefaultConfig(privileged bool) *Config {
	return &Config{
		InstallRoot:      DirPath(defaultInstallRoot(runtime.GOOS, privileged, os.Getenv, os.UserHomeDir)),
		Prefix:           DirPath(defaultPrefix(runtime.GOOS, privileged, os.Getenv, os.UserHomeDir)),
		VenvDir:          DefaultVenvDir,
		RequirementsFile: DefaultRequirementsFile,
		Network: NetworkConfig{
			AttemptTimeout: 5 * time.Minute,
			MaxAttempts:    3,
			RetryDelay:     2 * time.Second,
			CloneTimeout:   10 * time.Minute,
			UserAgent:      AppName,
		},
		Mirrors: MirrorsConfig{
			S3: S3Config{UseSSL: true},
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
		},
	}
}

func defaultInstallRoot(goos string, privileged bool, getenv func(string) string, home func() (string, error)) string {
	if goos == "windows" {
		base := getenv("LOCALAPPDATA")
		if privileged {
			base = getenv("ProgramData")
		}
		if base == "" {
			base = `C:\ProgramData`
		}
		return filepath.Join(base, AppName)
	}
	if privileged {
		return filepath.Join("/opt", AppName)
	}
	if data := getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, AppName)
	}
	if h, err := home(); err == nil {
		return filepath.Join(h, ".local", "share", AppName)
	}
	return filepath.Join(os.TempDir(), AppName)
}

// defaultPrefix is /usr/local on Unix. Unprivileged runs elevate make
// install through sudo, so the prefix stays machine-wide unless sudo is
// unavailable, in which case ~/.local is used.
func defaultPrefix(goos string, privileged bool, getenv func(string) string, home func() (string, error)) string {
	if goos == "windows" {
		return defaultInstallRoot(goos, privileged, getenv, home)
	}
	if privileged || sudoAvailable() {
		return "/usr/local"
	}
	if h, err := home(); err == nil {
		return filepath.Join(h, ".local")
	}
	return "/usr/local"
}

//nolint:gochecknoglobals // test seam
var sudoAvailable = func() bool {
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if info, err := os.Stat(filepath.Join(dir, "sudo")); err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	paths := []struct {
		field string
		path  DirPath
	}{
		{"install_root", c.InstallRoot},
		{"prefix", c.Prefix},
		{"venv_dir", c.VenvDir},
	}
	for _, p := range paths {
		if valid, fieldErrs := p.path.IsValid(p.field); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if strings.TrimSpace(c.RequirementsFile) == "" {
		errs = append(errs, &InvalidDirPathError{Field: "requirements_file", Value: DirPath(c.RequirementsFile)})
	}
	if valid, fieldErrs := c.Network.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Mirrors.S3.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is().
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// IsValid returns whether p is non-blank. field names the key in errors.
func (p DirPath) IsValid(field string) (bool, []error) {
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidDirPathError{Field: field, Value: p}}
	}
	return true, nil
}

// String returns the path as a plain string.
func (p DirPath) String() string { return string(p) }

// Error implements the error interface for InvalidDirPathError.
func (e *InvalidDirPathError) Error() string {
	return fmt.Sprintf("%s: path %q must not be empty", e.Field, e.Value)
}

// Unwrap returns ErrInvalidDirPath for errors.Is() compatibility.
func (e *InvalidDirPathError) Unwrap() error { return ErrInvalidDirPath }

// IsValid returns whether every timeout and the retry budget are positive.
func (c NetworkConfig) IsValid() (bool, []error) {
	var errs []error
	if c.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("network.attempt_timeout must be positive, got %s", c.AttemptTimeout))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("network.max_attempts must be at least 1, got %d", c.MaxAttempts))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("network.retry_delay must not be negative, got %s", c.RetryDelay))
	}
	if c.CloneTimeout <= 0 {
		errs = append(errs, fmt.Errorf("network.clone_timeout must be positive, got %s", c.CloneTimeout))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidNetworkConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidNetworkConfigError.
func (e *InvalidNetworkConfigError) Error() string {
	return fmt.Sprintf("invalid network config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidNetworkConfig for errors.Is() compatibility.
func (e *InvalidNetworkConfigError) Unwrap() error { return ErrInvalidNetworkConfig }

// Enabled reports whether s3:// mirrors are configured.
func (c S3Config) Enabled() bool { return c.Endpoint != "" }

// IsValid rejects a half-configured credential pair.
func (c S3Config) IsValid() (bool, []error) {
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return false, []error{fmt.Errorf("%w: access_key and secret_key must be set together", ErrInvalidS3Config)}
	}
	return true, nil
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error {
	return ErrInvalidColorScheme
}

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined schemes,
// and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}
