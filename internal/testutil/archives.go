// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ArchiveFile is one member of a test archive. Names ending in "/" are
// directories.
type ArchiveFile struct {
	Name string
	Body string
	Mode os.FileMode
}

// WriteZip creates a zip archive at path containing files.
func WriteZip(t testing.TB, path string, files ...ArchiveFile) string {
	t.Helper()

	f := mustCreate(t, path)
	zw := zip.NewWriter(f)
	for _, af := range files {
		hdr := &zip.FileHeader{Name: af.Name, Method: zip.Deflate}
		hdr.SetMode(fileMode(af))
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("failed to add %s to zip: %v", af.Name, err)
		}
		if !isDir(af) {
			if _, err := io.WriteString(w, af.Body); err != nil {
				t.Fatalf("failed to write %s: %v", af.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to finish zip: %v", err)
	}
	MustClose(t, f)
	return path
}

// WriteTarGz creates a gzip-compressed tarball at path containing files.
func WriteTarGz(t testing.TB, path string, files ...ArchiveFile) string {
	t.Helper()

	f := mustCreate(t, path)
	gz := gzip.NewWriter(f)
	writeTar(t, gz, files)
	MustClose(t, gz)
	MustClose(t, f)
	return path
}

// WriteTarXz creates an xz-compressed tarball at path containing files.
func WriteTarXz(t testing.TB, path string, files ...ArchiveFile) string {
	t.Helper()

	f := mustCreate(t, path)
	xw, err := xz.NewWriter(f)
	if err != nil {
		t.Fatalf("failed to create xz writer: %v", err)
	}
	writeTar(t, xw, files)
	MustClose(t, xw)
	MustClose(t, f)
	return path
}

// WriteTarZst creates a zstd-compressed tarball at path containing files.
func WriteTarZst(t testing.TB, path string, files ...ArchiveFile) string {
	t.Helper()

	f := mustCreate(t, path)
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatalf("failed to create zstd writer: %v", err)
	}
	writeTar(t, zw, files)
	MustClose(t, zw)
	MustClose(t, f)
	return path
}

// ZipBytes builds a zip archive in a temp dir and returns its content, for
// serving from test HTTP handlers.
func ZipBytes(t testing.TB, files ...ArchiveFile) []byte {
	t.Helper()

	path := WriteZip(t, filepath.Join(t.TempDir(), "payload.zip"), files...)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return data
}

func writeTar(t testing.TB, w io.Writer, files []ArchiveFile) {
	t.Helper()

	tw := tar.NewWriter(w)
	for _, af := range files {
		hdr := &tar.Header{
			Name: af.Name,
			Mode: int64(fileMode(af).Perm()),
			Size: int64(len(af.Body)),
		}
		if isDir(af) {
			hdr.Typeflag = tar.TypeDir
			hdr.Size = 0
		} else {
			hdr.Typeflag = tar.TypeReg
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("failed to write tar header %s: %v", af.Name, err)
		}
		if !isDir(af) {
			if _, err := io.WriteString(tw, af.Body); err != nil {
				t.Fatalf("failed to write tar body %s: %v", af.Name, err)
			}
		}
	}
	MustClose(t, tw)
}

func mustCreate(t testing.TB, path string) *os.File {
	t.Helper()
	MustMkdirAll(t, filepath.Dir(path), 0o755)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	return f
}

func isDir(af ArchiveFile) bool {
	return len(af.Name) > 0 && af.Name[len(af.Name)-1] == '/'
}

func fileMode(af ArchiveFile) os.FileMode {
	mode := af.Mode
	if mode == 0 {
		mode = 0o644
		if isDir(af) {
			mode = 0o755
		}
	}
	if isDir(af) {
		mode |= os.ModeDir
	}
	return mode
}
