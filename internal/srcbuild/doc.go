// SPDX-License-Identifier: MPL-2.0

// Package srcbuild checks out a tool's source repository, falling back to a
// mirror, and builds and installs it with its autotools build system.
package srcbuild
