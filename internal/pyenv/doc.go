// SPDX-License-Identifier: MPL-2.0

// Package pyenv prepares the Python runtime: it finds a suitable
// interpreter, selects or creates an isolated environment, makes sure pip
// works, and installs the project's requirements.
package pyenv
