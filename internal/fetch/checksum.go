// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	// ErrChecksumMismatch indicates the computed SHA256 hash does not match the expected hash.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// errNoValidEntries indicates a pin file contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

// ChecksumError provides details about a checksum verification failure.
// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
type ChecksumError struct {
	Source   string
	Expected string
	Got      string
}

// Error returns a human-readable description of the checksum mismatch,
// showing both expected and actual hash values.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s (expected %s, got %s)", e.Source, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

// ParsePins reads mirror pins in sha256sum layout, where the second column
// is the exact mirror URL rather than a filename:
//
//	{sha256_hex}  {url}
//
// Blank lines, comments, and malformed lines are skipped. Returns an error
// if no valid entries are found.
func ParsePins(r io.Reader) (map[string]string, error) {
	pins := make(map[string]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// The sha256sum format uses exactly two spaces between hash and name.
		parts := strings.SplitN(line, "  ", 2)
		if len(parts) != 2 {
			continue
		}

		hash := parts[0]
		source := strings.TrimSpace(parts[1])
		if source == "" || !isValidHexHash(hash) {
			continue
		}
		pins[source] = strings.ToLower(hash)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading pins: %w", err)
	}
	if len(pins) == 0 {
		return nil, errNoValidEntries
	}
	return pins, nil
}

// VerifyFile computes the SHA256 hash of the file at path and compares it with
// expectedHash. Returns nil if the hashes match (case-insensitive comparison),
// or a *ChecksumError wrapping ErrChecksumMismatch if they differ.
func VerifyFile(path, source, expectedHash string) error {
	got, err := ComputeFileHash(path)
	if err != nil {
		return err
	}

	if !strings.EqualFold(got, strings.TrimSpace(expectedHash)) {
		return &ChecksumError{
			Source:   source,
			Expected: strings.ToLower(strings.TrimSpace(expectedHash)),
			Got:      got,
		}
	}
	return nil
}

// ComputeFileHash returns the lowercase hex-encoded SHA256 digest of the file
// at path, streaming it through the hash.
func ComputeFileHash(path string) (_ string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		// Read-only file handle; close errors are exotic (NFS edge cases).
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// isValidHexHash checks if s is a valid 64-character hex-encoded SHA256 hash.
func isValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
