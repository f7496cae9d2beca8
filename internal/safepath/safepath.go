// Package safepath validates caller-supplied file names and confines joined
// paths to a root directory. Artifact names and custom source references are
// the only caller-controlled strings that ever reach the filesystem, and
// both must pass through here first.
package safepath

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// maxFilenameLength matches the common filesystem component limit.
const maxFilenameLength = 255

var (
	// ErrUnsafeFilename indicates a name with separators, traversal
	// sequences, reserved characters, or control bytes
	ErrUnsafeFilename = errors.New("unsafe filename")

	// ErrOutsideRoot indicates a joined path that escapes its root
	ErrOutsideRoot = errors.New("path escapes root directory")

	// ErrExtensionNotAllowed indicates a file extension outside the
	// allowlist for its use
	ErrExtensionNotAllowed = errors.New("file extension not allowed")
)

// reservedChars are rejected anywhere in a filename. Separators are covered
// so a validated name is always a single path component.
const reservedChars = `/\<>:"|?*`

// CheckFilename reports whether name is safe to use as a single path
// component and in a Content-Disposition header.
func CheckFilename(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return fmt.Errorf("%w: empty or reserved name", ErrUnsafeFilename)
	case len(name) > maxFilenameLength:
		return fmt.Errorf("%w: name exceeds %d characters", ErrUnsafeFilename, maxFilenameLength)
	case strings.ContainsAny(name, reservedChars):
		return fmt.Errorf("%w: reserved character in name", ErrUnsafeFilename)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: traversal sequence in name", ErrUnsafeFilename)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: control character in name", ErrUnsafeFilename)
		}
	}
	return nil
}

// CheckExtension verifies that name carries one of the allowed extensions
// (compared case-insensitively, leading dot included, e.g. ".tif").
func CheckExtension(name string, allowed ...string) error {
	ext := filepath.Ext(name)
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrExtensionNotAllowed, ext)
}

// Join joins elems under root and guarantees the result stays inside root.
// The check is lexical; callers keep roots free of untrusted symlinks.
func Join(root string, elems ...string) (string, error) {
	rel := filepath.Join(elems...)
	if rel == "" {
		return "", fmt.Errorf("%w: empty path", ErrOutsideRoot)
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrOutsideRoot, rel)
	}
	return filepath.Join(root, rel), nil
}
