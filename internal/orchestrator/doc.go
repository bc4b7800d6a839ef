// SPDX-License-Identifier: MPL-2.0

// Package orchestrator runs a provisioning pass: it walks a fixed sequence
// of phases, installing OS packages, prebuilt tools, source builds and the
// Python environment, and downgrades every per-item failure to a warning.
// Only an unmet privilege precondition aborts the run.
package orchestrator
