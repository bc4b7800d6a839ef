// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"io"
)

const (
	// maxExtractBytes caps the total uncompressed size of an archive (4 GB).
	maxExtractBytes int64 = 4 << 30

	// maxEntries caps the member count of an archive.
	maxEntries = 200_000
)

// ErrTooLarge indicates an archive exceeds the extraction limits.
var ErrTooLarge = errors.New("archive exceeds extraction limits")

// Validate reads every member of the archive at path to completion, which
// exercises the container structure and every compression checksum. A
// failure is reported as a *CorruptError.
func Validate(path string) error {
	var (
		total   int64
		members int
	)
	err := walk(path, func(e entry, r io.Reader) error {
		members++
		if members > maxEntries {
			return ErrTooLarge
		}
		if r == nil {
			return nil
		}
		n, err := io.Copy(io.Discard, io.LimitReader(r, maxExtractBytes-total+1))
		total += n
		if err != nil {
			return fmt.Errorf("reading %s: %w", e.name, err)
		}
		if total > maxExtractBytes {
			return ErrTooLarge
		}
		return nil
	})
	if err == nil && members == 0 {
		err = errors.New("archive has no entries")
	}
	if err != nil {
		return &CorruptError{Path: path, Err: err}
	}
	return nil
}
