// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package hostexec

import "os"

func processPrivileged() bool {
	return os.Geteuid() == 0
}
