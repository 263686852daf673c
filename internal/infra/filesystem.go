package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/profprune/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
// When root is set, deletions are confined to directories strictly below it.
type FileSystemManagerImpl struct {
	root string
}

// NewFileSystemManager creates an unconfined filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	return &FileSystemManagerImpl{}
}

// NewFileSystemManagerWithRoot creates a filesystem manager that refuses to
// delete anything outside root (or root itself).
func NewFileSystemManagerWithRoot(root string) domain.FileSystemManager {
	return &FileSystemManagerImpl{root: filepath.Clean(root)}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Delete removes a profile directory recursively.
func (fm *FileSystemManagerImpl) Delete(path string) error {
	cleaned := filepath.Clean(path)
	if cleaned == "." || cleaned == string(filepath.Separator) || cleaned == filepath.VolumeName(cleaned)+string(filepath.Separator) {
		return fmt.Errorf("refusing to delete %q", path)
	}

	if fm.root != "" && !isBelow(fm.root, cleaned) {
		return fmt.Errorf("refusing to delete %q: outside profile root %q", path, fm.root)
	}

	return os.RemoveAll(cleaned)
}

// isBelow reports whether path is strictly inside root.
func isBelow(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
