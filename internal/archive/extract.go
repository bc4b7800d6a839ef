// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath indicates an archive member would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// Extract unpacks the archive at src into dest, creating dest if needed.
// Members with absolute paths, parent traversal, or links pointing outside
// dest are rejected with ErrUnsafePath. Device nodes and other special
// members are skipped.
func Extract(ctx context.Context, src, dest string) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", root, err)
	}

	var (
		total   int64
		members int
	)
	return walk(src, func(e entry, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		members++
		if members > maxEntries {
			return ErrTooLarge
		}

		target, err := safeJoin(root, e.name)
		if err != nil {
			return err
		}
		if target == root {
			return nil
		}

		switch e.kind {
		case kindDir:
			return os.MkdirAll(target, dirMode(e.mode))
		case kindFile:
			n, err := writeFile(target, r, e.mode, maxExtractBytes-total)
			total += n
			return err
		case kindSymlink:
			return writeSymlink(root, target, e.linkname)
		case kindHardlink:
			src, err := safeJoin(root, e.linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			return os.Link(src, target)
		case kindOther:
		}
		return nil
	})
}

// safeJoin resolves name under root and rejects anything that escapes it.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	target := filepath.Join(root, clean)
	if !within(root, target) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func writeFile(target string, r io.Reader, mode fs.FileMode, budget int64) (_ int64, err error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// Read one byte past the budget so an oversized member is detected
	// rather than silently truncated.
	n, err := io.Copy(f, io.LimitReader(r, budget+1))
	if err != nil {
		return n, fmt.Errorf("extracting %s: %w", filepath.Base(target), err)
	}
	if n > budget {
		return n, ErrTooLarge
	}
	return n, nil
}

func writeSymlink(root, target, linkname string) error {
	if linkname == "" || filepath.IsAbs(linkname) {
		return fmt.Errorf("%w: link %s -> %s", ErrUnsafePath, target, linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	if !within(root, resolved) {
		return fmt.Errorf("%w: link %s -> %s", ErrUnsafePath, target, linkname)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	_ = os.Remove(target)
	return os.Symlink(linkname, target)
}

func dirMode(m fs.FileMode) fs.FileMode {
	if perm := m.Perm(); perm != 0 {
		return perm | 0o700
	}
	return 0o755
}
