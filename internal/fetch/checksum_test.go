// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParsePins(t *testing.T) {
	t.Parallel()

	input := strings.NewReader(
		"# pinned mirrors\n" +
			"A1B2C3D4E5F6A1B2C3D4E5F6A1B2C3D4E5F6A1B2C3D4E5F6A1B2C3D4E5F6A1B2  https://mirror.example/rtl-sdr.zip\n" +
			"\n" +
			"abcdef  https://short.example/x.zip\n" +
			"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef single-space\n" +
			"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef  s3://mirror/rtl-sdr.zip\n",
	)

	pins, err := ParsePins(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pins) != 2 {
		t.Fatalf("got %d pins, want 2", len(pins))
	}
	if got := pins["https://mirror.example/rtl-sdr.zip"]; got != "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2" {
		t.Errorf("hash not lowercased: %q", got)
	}
}

func TestParsePins_Empty(t *testing.T) {
	t.Parallel()

	if _, err := ParsePins(strings.NewReader("\n# nothing\n")); !errors.Is(err, errNoValidEntries) {
		t.Errorf("expected errNoValidEntries, got %v", err)
	}
}

func TestVerifyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "a.bin")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	// sha256("hello")
	const want = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	if err := VerifyFile(path, "mirror", want); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := VerifyFile(path, "mirror", strings.ToUpper(want)); err != nil {
		t.Errorf("uppercase hash should match: %v", err)
	}

	err := VerifyFile(path, "mirror", strings.Repeat("0", 64))
	var ce *ChecksumError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ChecksumError, got %v", err)
	}
	if ce.Got != want || ce.Source != "mirror" {
		t.Errorf("ChecksumError = %+v", ce)
	}
}

func TestVerifyFile_MissingFile(t *testing.T) {
	t.Parallel()

	err := VerifyFile(filepath.Join(t.TempDir(), "nope"), "mirror", strings.Repeat("0", 64))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
