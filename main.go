// SPDX-License-Identifier: MPL-2.0

package main

import cmd "sdrprov/cmd/sdrprov"

func main() {
	cmd.Execute()
}
