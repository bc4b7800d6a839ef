// SPDX-License-Identifier: MPL-2.0

// Package install places prebuilt tool archives into their target
// directories and registers the directories holding the required
// executables on the search path.
package install
