// SPDX-License-Identifier: MPL-2.0

// Package config handles sdrprov configuration using Viper.
//
// Settings come from built-in defaults, an optional config file, a .env file
// and SDRPROV_* environment variables, in increasing order of precedence.
// The config file is looked up as config.cue or config.toml in the
// platform config directory (~/.config/sdrprov on Linux,
// ~/Library/Application Support/sdrprov on macOS, %APPDATA%\sdrprov on
// Windows) and then in the working directory. Both formats are validated
// against the embedded CUE schema (config_schema.cue).
//
// No setting is required; a bare run uses the defaults.
package config
