// SPDX-License-Identifier: MPL-2.0

package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// maxConfigFileSize bounds config files read from disk.
const maxConfigFileSize = 1 << 20

//go:embed config_schema.cue
var configSchema string

// validateCUE compiles data as CUE, unifies it with #Config and returns the
// decoded map.
func validateCUE(data []byte, path string) (map[string]any, error) {
	ctx := cuecontext.New()
	user := ctx.CompileBytes(data, cue.Filename(path))
	if user.Err() != nil {
		return nil, formatCUEError(user.Err(), path)
	}
	return unifyWithSchema(ctx, user, path)
}

// validateMap checks an already-decoded document, such as TOML, against
// #Config.
func validateMap(doc map[string]any, path string) (map[string]any, error) {
	ctx := cuecontext.New()
	v := ctx.Encode(doc)
	if v.Err() != nil {
		return nil, formatCUEError(v.Err(), path)
	}
	return unifyWithSchema(ctx, v, path)
}

func unifyWithSchema(ctx *cue.Context, v cue.Value, path string) (map[string]any, error) {
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return nil, formatCUEError(err, path)
	}

	var out map[string]any
	if err := unified.Decode(&out); err != nil {
		return nil, formatCUEError(err, path)
	}
	return out, nil
}

// formatCUEError renders each CUE error as "<file>: <json-path>: <message>".
func formatCUEError(err error, filePath string) error {
	if err == nil {
		return nil
	}

	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return fmt.Errorf("%s: %w", filePath, err)
	}

	lines := make([]string, 0, len(list))
	for _, e := range list {
		pathStr := formatPath(cueerrors.Path(e))
		msg := e.Error()

		// CUE sometimes repeats the path in the message itself.
		if pathStr != "" && strings.HasPrefix(msg, pathStr) {
			msg = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(msg, pathStr), ":"))
		}
		if pathStr != "" {
			lines = append(lines, pathStr+": "+msg)
		} else {
			lines = append(lines, msg)
		}
	}

	if len(lines) == 1 {
		return fmt.Errorf("%s: %s", filePath, lines[0])
	}
	return fmt.Errorf("%s: validation failed:\n  %s", filePath, strings.Join(lines, "\n  "))
}

// formatPath converts ["mirrors", "s3", "use_ssl"] to "mirrors.s3.use_ssl"
// and numeric elements to [n] indices.
func formatPath(path []string) string {
	var b strings.Builder
	for i, part := range path {
		if i > 0 && isIndex(part) {
			b.WriteString("[" + part + "]")
			continue
		}
		if i > 0 {
			b.WriteString(".")
		}
		b.WriteString(part)
	}
	return b.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func checkFileSize(data []byte, path string) error {
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}
	return nil
}
