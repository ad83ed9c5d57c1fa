// Package file provides the files, directory entries, and path helpers
// behind the read-only fs.FS view of an archive.
package file

import "strings"

// Child returns the element of name directly below dir, where dir is "."
// or a valid fs path. isDir reports whether name continues below that
// element. ok is false when name is not inside dir.
func Child(dir, name string) (child string, isDir, ok bool) {
	rel := name
	if dir != "." {
		var found bool
		if rel, found = strings.CutPrefix(name, dir+"/"); !found {
			return "", false, false
		}
	}
	child, rest, more := strings.Cut(rel, "/")
	return child, more && rest != "", child != ""
}
