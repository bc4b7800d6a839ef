// SPDX-License-Identifier: MPL-2.0

// Package pkgmgr detects the host's OS package manager and installs logical
// packages through it. Logical names such as "libusb" are mapped to each
// manager's own package names by a fixed table.
package pkgmgr
