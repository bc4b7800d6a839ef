// SPDX-License-Identifier: MPL-2.0

// Package hostexec runs host commands and resolves executables on the
// session search path.
//
// Every component that shells out (package managers, build toolchains, the
// Python interpreter) goes through the Runner interface so that tests can
// substitute a recording fake and never touch the real host.
package hostexec
