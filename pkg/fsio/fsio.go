// Package fsio reads, writes and removes files on behalf of the engine.
package fsio

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/basin/errors"
	"github.com/moby/patternmatcher"
)

// File is the content of a file together with its root-relative path.
type File struct {
	Path    string
	Content string
}

// resolve joins a relative path onto root.
func resolve(path, root string) string {
	if filepath.IsAbs(path) || root == "" {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

// relative returns path relative to root with forward slashes, or path itself
// when it lies outside root.
func relative(path, root string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Read loads a file. Relative paths are resolved against root, and the
// returned Path is relative to root.
func Read(path, root string) (File, error) {
	abs := resolve(path, root)

	data, err := os.ReadFile(abs)
	if err != nil {
		return File{}, errors.IOFailed("read", abs, err)
	}

	return File{
		Path:    relative(abs, root),
		Content: string(data),
	}, nil
}

// Write stores content at path, creating missing parent directories.
// Relative paths are resolved against root.
func Write(path string, content []byte, root string) error {
	abs := resolve(path, root)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.IOFailed("mkdir", filepath.Dir(abs), err)
	}

	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return errors.IOFailed("write", abs, err)
	}
	return nil
}

// HasMeta reports whether pattern contains glob metacharacters.
func HasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// RemoveAll deletes every path matching pattern. A pattern without glob
// metacharacters is removed literally. Missing paths are not an error.
func RemoveAll(pattern string) error {
	if pattern == "" {
		return errors.IOFailed("remove", pattern, fs.ErrInvalid)
	}

	if !HasMeta(pattern) {
		if err := os.RemoveAll(pattern); err != nil {
			return errors.IOFailed("remove", pattern, err)
		}
		return nil
	}

	base := staticBase(pattern)
	rel, err := filepath.Rel(base, filepath.Clean(pattern))
	if err != nil {
		return errors.IOFailed("remove", pattern, err)
	}

	matcher, err := patternmatcher.New([]string{filepath.ToSlash(rel)})
	if err != nil {
		return errors.IOFailed("remove", pattern, err)
	}

	var matches []string
	walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if path == base {
			return nil
		}

		relPath, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		matched, err := matcher.MatchesOrParentMatches(filepath.ToSlash(relPath))
		if err != nil {
			return err
		}
		if matched {
			matches = append(matches, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if walkErr != nil {
		return errors.IOFailed("remove", pattern, walkErr)
	}

	for _, path := range matches {
		if err := os.RemoveAll(path); err != nil {
			return errors.IOFailed("remove", path, err)
		}
	}
	return nil
}

// staticBase returns the longest leading directory of pattern that contains
// no glob metacharacters.
func staticBase(pattern string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(pattern)), "/")

	var static []string
	for _, part := range parts {
		if HasMeta(part) {
			break
		}
		static = append(static, part)
	}

	if len(static) == 0 {
		return "."
	}
	base := strings.Join(static, "/")
	if base == "" {
		// Pattern was rooted at "/".
		return string(filepath.Separator)
	}
	return filepath.FromSlash(base)
}

// Delete removes a single path. A missing path is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.IOFailed("remove", path, err)
	}
	return nil
}
