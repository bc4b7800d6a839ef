// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package pathreg

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	blockBegin = "# >>> sdrprov search path >>>"
	blockEnd   = "# <<< sdrprov search path <<<"

	exportPrefix = `export PATH="$PATH:`
	exportSuffix = `"`

	// systemProfile is sourced by login shells on every mainstream distro.
	systemProfile = "/etc/profile.d/sdrprov.sh"
)

// ProfileStore persists directories as a managed block of export lines in a
// shell profile. Content outside the block is preserved verbatim.
type ProfileStore struct {
	Path string
}

// DefaultStore returns the machine-wide profile when privileged and the
// user's login profile otherwise.
func DefaultStore(privileged bool) (Store, error) {
	if privileged {
		return &ProfileStore{Path: systemProfile}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &ProfileStore{Path: userProfile(home)}, nil
}

// userProfile picks the file a bash login shell reads: the first existing
// of ~/.bash_profile and ~/.bash_login, since either one hides ~/.profile.
// Other shells read ~/.profile, which is the fallback.
func userProfile(home string) string {
	for _, name := range []string{".bash_profile", ".bash_login"} {
		p := filepath.Join(home, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return filepath.Join(home, ".profile")
}

// Location implements Store.
func (s *ProfileStore) Location() string { return s.Path }

// Load returns the directories listed inside the managed block. A missing
// profile yields an empty list.
func (s *ProfileStore) Load() ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var dirs []string
	inBlock := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == blockBegin:
			inBlock = true
		case line == blockEnd:
			inBlock = false
		case inBlock && strings.HasPrefix(line, exportPrefix) && strings.HasSuffix(line, exportSuffix):
			dirs = append(dirs, strings.TrimSuffix(strings.TrimPrefix(line, exportPrefix), exportSuffix))
		}
	}
	return dirs, sc.Err()
}

// Save rewrites the managed block with dirs, appending the block when the
// profile has none yet.
func (s *ProfileStore) Save(dirs []string) error {
	data, err := os.ReadFile(s.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	var block strings.Builder
	block.WriteString(blockBegin + "\n")
	for _, d := range dirs {
		block.WriteString(exportPrefix + d + exportSuffix + "\n")
	}
	block.WriteString(blockEnd + "\n")

	var out strings.Builder
	replaced := false
	inBlock := false
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == blockBegin:
			inBlock = true
			if !replaced {
				out.WriteString(block.String())
				replaced = true
			}
		case trimmed == blockEnd:
			inBlock = false
		case !inBlock:
			out.WriteString(line + "\n")
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if !replaced {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n\n") {
			out.WriteString("\n")
		}
		out.WriteString(block.String())
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.Path, []byte(out.String()), 0o644)
}
