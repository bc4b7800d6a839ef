// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type countingCloser struct{ closed int }

func (c *countingCloser) Close() error {
	c.closed++
	return nil
}

func TestMustClose(t *testing.T) {
	t.Parallel()

	c := &countingCloser{}
	MustClose(t, c)
	if c.closed != 1 {
		t.Errorf("Close called %d times, want 1", c.closed)
	}
}

func fixture() []ArchiveFile {
	return []ArchiveFile{
		{Name: "rtl-sdr/"},
		{Name: "rtl-sdr/rtl_fm", Body: "fm", Mode: 0o755},
	}
}

func tarNames(t *testing.T, r io.Reader) []string {
	t.Helper()

	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return names
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		names = append(names, hdr.Name)
	}
}

func TestWriteTarballs(t *testing.T) {
	t.Parallel()

	want := []string{"rtl-sdr/", "rtl-sdr/rtl_fm"}
	dir := t.TempDir()

	tests := []struct {
		name   string
		write  func(testing.TB, string, ...ArchiveFile) string
		reader func(io.Reader) (io.Reader, error)
	}{
		{"tar.gz", WriteTarGz, func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{"tar.xz", WriteTarXz, func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }},
		{"tar.zst", WriteTarZst, func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		}},
	}
	for _, tt := range tests {
		path := tt.write(t, filepath.Join(dir, "nested", "x."+tt.name), fixture()...)
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r, err := tt.reader(f)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if got := tarNames(t, r); !slices.Equal(got, want) {
			t.Errorf("%s members = %v, want %v", tt.name, got, want)
		}
		MustClose(t, f)
	}
}

func TestZipBytes(t *testing.T) {
	t.Parallel()

	data := ZipBytes(t, fixture()...)
	path := filepath.Join(t.TempDir(), "a.zip")
	MustWriteFile(t, path, string(data))

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = zr.Close() }()

	if len(zr.File) != 2 || zr.File[1].Name != "rtl-sdr/rtl_fm" {
		t.Errorf("unexpected members: %v", zr.File)
	}
	if !zr.File[1].Mode().IsRegular() || zr.File[1].Mode().Perm()&0o100 == 0 {
		t.Errorf("rtl_fm mode = %v, want executable", zr.File[1].Mode())
	}
}
