// Package pathutil confines dataset and catalog paths supplied by MCP clients
// to a set of allowed root directories.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RedactPath reduces a full path to .../<parent>/<basename> for safe error messages.
// For example, "/home/user/data/train" becomes ".../data/train".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	base := filepath.Base(cleaned)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// Resolve returns the symlink-resolved absolute form of path if it lies
// within one of roots. Relative paths are taken relative to the first root,
// not the process working directory. The path itself need not exist.
func Resolve(path string, roots []string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path validation failed: path is empty")
	}
	if len(roots) == 0 {
		return "", fmt.Errorf("path validation failed: no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return "", fmt.Errorf("path validation failed: path contains null byte")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(roots[0], path)
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("path validation failed: cannot resolve absolute path: %w", err)
	}

	// A symlinked directory inside a root may point outside it.
	resolved, err := resolveExisting(absPath)
	if err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}

	for _, root := range roots {
		rootAbs, err := filepath.Abs(filepath.Clean(root))
		if err != nil {
			continue
		}
		rootResolved, err := resolveExisting(rootAbs)
		if err != nil {
			continue
		}
		if isSubpath(resolved, rootResolved) {
			return resolved, nil
		}
	}

	return "", fmt.Errorf("path validation failed: %q is outside allowed directories", RedactPath(absPath))
}

// ValidatePath reports whether path lies within one of roots.
func ValidatePath(path string, roots []string) error {
	_, err := Resolve(path, roots)
	return err
}

// DatasetRoots returns the directories MCP tools may write into: the
// project root plus every configured directory outside it. Relative
// directories are resolved against projectRoot.
func DatasetRoots(projectRoot string, dirs ...string) []string {
	roots := []string{filepath.Clean(projectRoot)}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if !filepath.IsAbs(d) {
			d = filepath.Join(projectRoot, d)
		}
		d = filepath.Clean(d)
		if !isSubpath(d, roots[0]) {
			roots = append(roots, d)
		}
	}
	return roots
}

// resolveExisting resolves symlinks on the deepest existing ancestor of path
// and re-appends the tail that does not exist yet.
func resolveExisting(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(path)
	if parent == path {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(path))
	}

	resolvedParent, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(path)), nil
}

// isSubpath checks whether path is equal to or below base.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	// "/tmp/foo" must not match "/tmp/foobar"
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}
