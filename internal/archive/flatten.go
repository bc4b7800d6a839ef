// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"io/fs"
	"path/filepath"
)

// PayloadRoot picks the directory whose contents should be installed, given
// the listing of an extraction root. A lone top-level directory is treated
// as a wrapper and unwrapped one level; anything else installs the root
// itself. Nested wrappers are not unwrapped further.
func PayloadRoot(root string, entries []fs.DirEntry) string {
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(root, entries[0].Name())
	}
	return root
}
