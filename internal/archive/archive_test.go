// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sdrprov/internal/testutil"
)

func payload() []testutil.ArchiveFile {
	return []testutil.ArchiveFile{
		{Name: "rtl-sdr-release/"},
		{Name: "rtl-sdr-release/x64/"},
		{Name: "rtl-sdr-release/x64/rtl_fm.exe", Body: "fm", Mode: 0o755},
		{Name: "rtl-sdr-release/x64/rtl_power.exe", Body: "power", Mode: 0o755},
		{Name: "rtl-sdr-release/README", Body: "readme"},
	}
}

func TestDetect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name  string
		build func(path string) string
		want  Format
	}{
		{"zip", func(p string) string { return testutil.WriteZip(t, p, payload()...) }, FormatZip},
		{"tar.gz", func(p string) string { return testutil.WriteTarGz(t, p, payload()...) }, FormatTarGz},
		{"tar.xz", func(p string) string { return testutil.WriteTarXz(t, p, payload()...) }, FormatTarXz},
		{"tar.zst", func(p string) string { return testutil.WriteTarZst(t, p, payload()...) }, FormatTarZst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := tt.build(filepath.Join(dir, "a."+tt.name))
			got, err := Detect(path)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDetect_HTMLErrorPage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "download.zip")
	if err := os.WriteFile(path, []byte("<!DOCTYPE html><html>404</html>"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	got, err := Detect(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != FormatUnknown {
		t.Errorf("Detect = %s, want unknown", got)
	}
}

func TestValidate_AcceptsEveryFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{
		testutil.WriteZip(t, filepath.Join(dir, "a.zip"), payload()...),
		testutil.WriteTarGz(t, filepath.Join(dir, "a.tar.gz"), payload()...),
		testutil.WriteTarXz(t, filepath.Join(dir, "a.tar.xz"), payload()...),
		testutil.WriteTarZst(t, filepath.Join(dir, "a.tar.zst"), payload()...),
	}
	for _, p := range paths {
		if err := Validate(p); err != nil {
			t.Errorf("Validate(%s) = %v", filepath.Base(p), err)
		}
	}
}

func TestValidate_RejectsTruncatedArchive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	full := testutil.WriteTarGz(t, filepath.Join(dir, "full.tar.gz"), payload()...)
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}

	truncated := filepath.Join(dir, "truncated.tar.gz")
	if err := os.WriteFile(truncated, data[:len(data)/2], 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	err = Validate(truncated)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	var ce *CorruptError
	if !errors.As(err, &ce) || ce.Path != truncated {
		t.Errorf("expected *CorruptError for %s, got %v", truncated, err)
	}
}

func TestValidate_RejectsUnknownAndEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.zip")
	if err := os.WriteFile(garbage, []byte("not an archive"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if err := Validate(garbage); !errors.Is(err, ErrCorrupt) {
		t.Errorf("garbage: expected ErrCorrupt, got %v", err)
	}

	empty := testutil.WriteZip(t, filepath.Join(dir, "empty.zip"))
	if err := Validate(empty); !errors.Is(err, ErrCorrupt) {
		t.Errorf("empty zip: expected ErrCorrupt, got %v", err)
	}
}

func TestExtract_ZipAndTar(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, src := range []string{
		testutil.WriteZip(t, filepath.Join(dir, "a.zip"), payload()...),
		testutil.WriteTarXz(t, filepath.Join(dir, "a.tar.xz"), payload()...),
	} {
		dest := filepath.Join(dir, "out-"+filepath.Base(src))
		if err := Extract(context.Background(), src, dest); err != nil {
			t.Fatalf("Extract(%s): %v", filepath.Base(src), err)
		}

		data, err := os.ReadFile(filepath.Join(dest, "rtl-sdr-release", "x64", "rtl_fm.exe"))
		if err != nil {
			t.Fatalf("extracted file missing: %v", err)
		}
		if string(data) != "fm" {
			t.Errorf("content = %q, want %q", data, "fm")
		}
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		file testutil.ArchiveFile
	}{
		{"parent", testutil.ArchiveFile{Name: "../evil.sh", Body: "x"}},
		{"nested parent", testutil.ArchiveFile{Name: "ok/../../evil.sh", Body: "x"}},
		{"absolute", testutil.ArchiveFile{Name: "/etc/evil.sh", Body: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := testutil.WriteTarGz(t, filepath.Join(t.TempDir(), "evil.tar.gz"), tt.file)
			dest := filepath.Join(dir, tt.name)
			err := Extract(context.Background(), src, dest)
			if !errors.Is(err, ErrUnsafePath) {
				t.Errorf("expected ErrUnsafePath, got %v", err)
			}
		})
	}
}

func TestExtract_HonorsCancellation(t *testing.T) {
	t.Parallel()

	src := testutil.WriteZip(t, filepath.Join(t.TempDir(), "a.zip"), payload()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Extract(ctx, src, t.TempDir()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPayloadRoot(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		layout []string
		want   string
	}{
		{"single wrapper dir", []string{"wrapper/"}, "wrapper"},
		{"multiple root entries", []string{"bin/", "README"}, ""},
		{"single file", []string{"rtl_fm"}, ""},
		{"two dirs", []string{"x86/", "x64/"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			for _, name := range tt.layout {
				p := filepath.Join(root, name)
				if name[len(name)-1] == '/' {
					testutil.MustMkdirAll(t, p, 0o755)
					continue
				}
				if err := os.WriteFile(p, nil, 0o644); err != nil {
					t.Fatalf("failed to write: %v", err)
				}
			}

			entries, err := os.ReadDir(root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			want := filepath.Join(root, tt.want)
			if got := PayloadRoot(root, entries); got != want {
				t.Errorf("PayloadRoot = %s, want %s", got, want)
			}
		})
	}
}
