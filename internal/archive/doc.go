// SPDX-License-Identifier: MPL-2.0

// Package archive detects, validates, and safely extracts the archive
// formats that tool vendors publish: zip, tar.gz, tar.xz, and tar.zst.
package archive
