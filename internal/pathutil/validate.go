// Package pathutil confines file paths supplied by tool callers to the
// directories fitgen is allowed to read and write.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RunsDirName is the directory under the work dir that receives simulation
// outputs by default.
const RunsDirName = "runs"

var (
	// ErrInvalidPath is returned for paths that cannot name a file at all.
	ErrInvalidPath = errors.New("invalid path")

	// ErrOutsideAllowed is returned for paths that escape every allowed directory.
	ErrOutsideAllowed = errors.New("outside allowed directories")
)

// RedactPath shortens a path to .../<parent>/<basename> for error messages.
// For example, "/home/user/.fitgen/runs/line.csv" becomes ".../runs/line.csv".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath reports an error unless path resolves inside one of
// allowedDirs. Symlinks on the existing part of the path are resolved
// first, so a link inside an allowed tree cannot point out of it.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("%w: path is empty", ErrInvalidPath)
	case strings.ContainsRune(path, '\x00'):
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	case len(allowedDirs) == 0:
		return fmt.Errorf("%w: no allowed directories configured", ErrInvalidPath)
	}

	target, err := resolve(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	for _, dir := range allowedDirs {
		abs, err := filepath.Abs(filepath.Clean(dir))
		if err != nil {
			continue
		}
		base, err := resolveExistingParent(abs)
		if err != nil {
			continue
		}
		if isSubpath(target, base) {
			return nil
		}
	}
	return fmt.Errorf("%q is %w", RedactPath(target), ErrOutsideAllowed)
}

// resolve makes p absolute and resolves symlinks on its existing prefix.
// The leaf may not exist yet.
func resolve(p string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(p))
	if err != nil {
		return "", err
	}
	dir, err := resolveExistingParent(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}

// resolveExistingParent resolves symlinks on the deepest existing ancestor
// of dir and re-appends the missing tail.
func resolveExistingParent(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("cannot resolve path: %s", RedactPath(dir))
	}

	resolvedParent, err := resolveExistingParent(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedParent, filepath.Base(dir)), nil
}

// isSubpath reports whether path is base or lies below it.
func isSubpath(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(os.PathSeparator))
}

// AllowedDirs returns the directories tool callers may name: the runs
// directory under workDir and, when set, the project root.
func AllowedDirs(workDir, projectRoot string) []string {
	dirs := []string{filepath.Join(workDir, RunsDirName)}
	if projectRoot != "" {
		dirs = append(dirs, projectRoot)
	}
	return dirs
}
