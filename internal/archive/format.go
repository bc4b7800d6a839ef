// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// FormatUnknown is returned for content with no recognized signature.
	FormatUnknown Format = iota
	// FormatZip is a PKZIP archive.
	FormatZip
	// FormatTarGz is a gzip-compressed tarball.
	FormatTarGz
	// FormatTarXz is an xz-compressed tarball.
	FormatTarXz
	// FormatTarZst is a zstd-compressed tarball.
	FormatTarZst
	// FormatTar is an uncompressed tarball.
	FormatTar
)

var (
	// ErrCorrupt indicates the file is not a structurally valid archive.
	ErrCorrupt = errors.New("corrupt archive")

	// ErrUnsupportedFormat indicates the file signature is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	magicZip      = []byte("PK\x03\x04")
	magicZipEmpty = []byte("PK\x05\x06")
	magicGzip     = []byte{0x1f, 0x8b}
	magicXz       = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd     = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicUstar    = []byte("ustar")
)

type (
	// Format identifies an archive container and compression.
	Format int

	// CorruptError describes why an archive failed validation.
	// It wraps ErrCorrupt for errors.Is classification.
	CorruptError struct {
		Path string
		Err  error
	}
)

// String returns a short human-readable format name.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	case FormatTarXz:
		return "tar.xz"
	case FormatTarZst:
		return "tar.zst"
	case FormatTar:
		return "tar"
	case FormatUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Error implements the error interface.
func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt archive %s: %v", e.Path, e.Err)
}

// Unwrap returns ErrCorrupt so callers can use errors.Is.
func (e *CorruptError) Unwrap() error { return ErrCorrupt }

// Detect sniffs the leading bytes of the file at path.
func Detect(path string) (Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown, err
	}
	defer func() {
		// Read-only file handle; close errors are exotic.
		_ = f.Close()
	}()

	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return FormatUnknown, fmt.Errorf("reading header of %s: %w", path, err)
	}
	return detectBytes(header[:n]), nil
}

func detectBytes(b []byte) Format {
	switch {
	case bytes.HasPrefix(b, magicZip), bytes.HasPrefix(b, magicZipEmpty):
		return FormatZip
	case bytes.HasPrefix(b, magicGzip):
		return FormatTarGz
	case bytes.HasPrefix(b, magicXz):
		return FormatTarXz
	case bytes.HasPrefix(b, magicZstd):
		return FormatTarZst
	case len(b) >= 262 && bytes.Equal(b[257:262], magicUstar):
		return FormatTar
	}
	return FormatUnknown
}
