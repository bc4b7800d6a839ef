// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads a named artifact from an ordered list of mirrors.
//
// Mirrors are tried in preference order. Each candidate is downloaded to a
// fresh temp file, checked against a pinned SHA256 when one is registered for
// that exact URL, and validated as a well-formed archive. The first candidate
// that passes is returned; rejected candidates are deleted before the next
// mirror is tried. Transient transport failures are retried a bounded number
// of times per mirror.
//
// Supported schemes are http, https, file, and s3 (any S3-compatible store).
package fetch
