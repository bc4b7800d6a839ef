// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package pathreg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProfileStore_MissingFileLoadsEmpty(t *testing.T) {
	t.Parallel()

	s := &ProfileStore{Path: filepath.Join(t.TempDir(), ".profile")}
	dirs, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("got %v, want empty", dirs)
	}
}

func TestProfileStore_SaveAppendsBlockAndPreservesContent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".profile")
	original := "# user profile\nexport EDITOR=vim\n"
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatalf("failed to write profile: %v", err)
	}

	s := &ProfileStore{Path: path}
	if err := s.Save([]string{"/opt/sdr/tools/rtl-sdr/bin"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read profile: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, original) {
		t.Errorf("existing content was not preserved:\n%s", content)
	}
	if !strings.Contains(content, `export PATH="$PATH:/opt/sdr/tools/rtl-sdr/bin"`) {
		t.Errorf("export line missing:\n%s", content)
	}

	dirs, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != "/opt/sdr/tools/rtl-sdr/bin" {
		t.Errorf("Load = %v", dirs)
	}
}

func TestProfileStore_SaveReplacesExistingBlock(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".profile")
	s := &ProfileStore{Path: path}

	if err := s.Save([]string{"/a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(path, append(mustRead(t, path), []byte("alias ll='ls -l'\n")...), 0o644); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := s.Save([]string{"/a", "/b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	content := string(mustRead(t, path))
	if strings.Count(content, blockBegin) != 1 {
		t.Errorf("expected exactly one managed block:\n%s", content)
	}
	if !strings.Contains(content, "alias ll='ls -l'") {
		t.Errorf("content after the block was lost:\n%s", content)
	}

	dirs, _ := s.Load()
	if len(dirs) != 2 || dirs[1] != "/b" {
		t.Errorf("Load = %v, want [/a /b]", dirs)
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

func TestUserProfile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		present []string
		want    string
	}{
		{"none", nil, ".profile"},
		{"profile only", []string{".profile"}, ".profile"},
		{"bash_profile hides profile", []string{".profile", ".bash_profile"}, ".bash_profile"},
		{"bash_login hides profile", []string{".profile", ".bash_login"}, ".bash_login"},
		{"bash_profile wins over bash_login", []string{".bash_login", ".bash_profile"}, ".bash_profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			home := t.TempDir()
			for _, name := range tt.present {
				if err := os.WriteFile(filepath.Join(home, name), nil, 0o644); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if got := userProfile(home); got != filepath.Join(home, tt.want) {
				t.Errorf("userProfile() = %s, want %s", got, tt.want)
			}
		})
	}
}
