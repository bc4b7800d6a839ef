// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type (
	// entryKind classifies archive members independent of container format.
	entryKind int

	// entry is a format-neutral view of one archive member.
	entry struct {
		name     string
		kind     entryKind
		mode     fs.FileMode
		linkname string
	}

	// visitFunc is called for each member. r is non-nil only for regular
	// files and zip-encoded symlinks.
	visitFunc func(e entry, r io.Reader) error
)

const (
	kindFile entryKind = iota
	kindDir
	kindSymlink
	kindHardlink
	kindOther
)

// walk iterates the members of the archive at path in stored order.
func walk(path string, visit visitFunc) error {
	format, err := Detect(path)
	if err != nil {
		return err
	}

	switch format {
	case FormatZip:
		return walkZip(path, visit)
	case FormatTarGz, FormatTarXz, FormatTarZst, FormatTar:
		return walkTar(path, format, visit)
	case FormatUnknown:
		return ErrUnsupportedFormat
	}
	return ErrUnsupportedFormat
}

func walkZip(path string, visit visitFunc) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}
	defer func() {
		// Read-only archive handle; close errors are not actionable.
		_ = zr.Close()
	}()

	for _, f := range zr.File {
		mode := f.Mode()
		e := entry{name: f.Name, mode: mode}
		switch {
		case mode.IsDir():
			e.kind = kindDir
			if err := visit(e, nil); err != nil {
				return err
			}
			continue
		case mode&fs.ModeSymlink != 0:
			e.kind = kindSymlink
		case mode.IsRegular():
			e.kind = kindFile
		default:
			e.kind = kindOther
		}

		if err := visitZipFile(f, e, visit); err != nil {
			return err
		}
	}
	return nil
}

func visitZipFile(f *zip.File, e entry, visit visitFunc) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	if e.kind == kindSymlink {
		// Zip stores the link target as the member content.
		target, err := io.ReadAll(io.LimitReader(rc, 4096))
		if err != nil {
			return fmt.Errorf("reading link %s: %w", f.Name, err)
		}
		e.linkname = string(target)
		return visit(e, nil)
	}
	return visit(e, rc)
}

func walkTar(path string, format Format, visit visitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	var r io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating gzip reader: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	case FormatTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating xz reader: %w", err)
		}
		r = xr
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("creating zstd reader: %w", err)
		}
		defer zr.Close()
		r = zr
	case FormatTar, FormatZip, FormatUnknown:
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		e := entry{name: hdr.Name, mode: hdr.FileInfo().Mode(), linkname: hdr.Linkname}
		var body io.Reader
		switch hdr.Typeflag {
		case tar.TypeDir:
			e.kind = kindDir
		case tar.TypeReg:
			e.kind = kindFile
			body = tr
		case tar.TypeSymlink:
			e.kind = kindSymlink
		case tar.TypeLink:
			e.kind = kindHardlink
		default:
			e.kind = kindOther
		}
		if err := visit(e, body); err != nil {
			return err
		}
	}
}
