// Package pathutil provides path manipulation for slash-separated archive paths.
package pathutil

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
)

// Clean normalizes an entry path to its forward-relative form.
// Backslashes are treated as separators; "." segments, repeated separators
// and trailing slashes are dropped. It reports false when the path is empty,
// absolute, or contains a ".." segment.
func Clean(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") || hasDrive(p) {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}
	p = path.Clean(p)
	if p == "." {
		return "", false
	}
	return p, true
}

// IsForwardRelative reports whether p is already in the form Clean returns.
func IsForwardRelative(p string) bool {
	c, ok := Clean(p)
	return ok && c == p
}

// Join prefixes dir onto name. An empty dir returns name unchanged.
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	return dir + "/" + name
}

// DirName returns the ZIP header name of a directory entry.
func DirName(p string) string {
	return p + "/"
}

// TrimDir strips the trailing separator that marks directory names in ZIP headers.
func TrimDir(name string) (string, bool) {
	if strings.HasSuffix(name, "/") {
		return strings.TrimSuffix(name, "/"), true
	}
	return name, false
}

// Folder produces case-insensitive keys for paths.
// A Folder is not safe for concurrent use.
type Folder struct {
	caser cases.Caser
}

// NewFolder returns a Folder using Unicode case folding.
func NewFolder() *Folder {
	return &Folder{caser: cases.Fold()}
}

// Key returns the case-folded form of p.
func (f *Folder) Key(p string) string {
	return f.caser.String(p)
}

func hasDrive(p string) bool {
	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
