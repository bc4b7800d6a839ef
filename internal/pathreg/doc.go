// SPDX-License-Identifier: MPL-2.0

// Package pathreg maintains the executable search path for a provisioning
// run. Directories are appended at most once, take effect for the current
// process immediately, and are persisted to the host store on Commit.
package pathreg
