// SPDX-License-Identifier: MPL-2.0

//go:build windows

package hostexec

import "golang.org/x/sys/windows"

func processPrivileged() bool {
	// The pseudo-token needs no Close.
	return windows.GetCurrentProcessToken().IsElevated()
}
