// SPDX-License-Identifier: MPL-2.0

package hostexec

import "runtime"

//nolint:gochecknoglobals // Test seam for privilege detection.
var isPrivileged = processPrivileged

// IsPrivileged reports whether the current process runs with administrative
// rights (euid 0 on Unix, an elevated token on Windows).
func IsPrivileged() bool {
	return isPrivileged()
}

// Elevate prefixes c with sudo when the process is not privileged and the
// host is Unix-like. Windows commands are returned unchanged; elevation there
// is a precondition of the whole run.
func Elevate(c Command) Command {
	if runtime.GOOS == "windows" || IsPrivileged() {
		return c
	}
	return Command{
		Name: "sudo",
		Args: append([]string{c.Name}, c.Args...),
		Dir:  c.Dir,
		Env:  c.Env,
	}
}

// SetPrivilegedForTest overrides privilege detection and returns a restore
// function.
func SetPrivilegedForTest(privileged bool) func() {
	prev := isPrivileged
	isPrivileged = func() bool { return privileged }
	return func() { isPrivileged = prev }
}
