package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const maxFilenameLength = 200

var (
	unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedWhitespace  = regexp.MustCompile(`\s+`)
)

// FileOperations provides file system utilities
type FileOperations struct{}

// NewFileOperations creates a new FileOperations instance
func NewFileOperations() *FileOperations {
	return &FileOperations{}
}

// SanitizeFilename makes an upstream filename safe for local storage:
// unsafe characters become underscores, runs of whitespace collapse to
// one space, and overlong names are truncated with the extension kept.
// Sanitizing an already-sanitized name is a no-op.
func SanitizeFilename(name string) string {
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = repeatedWhitespace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return "download"
	}

	if len(name) > maxFilenameLength {
		ext := filepath.Ext(name)
		if len(ext) >= maxFilenameLength {
			ext = ""
		}
		base := name[:maxFilenameLength-len(ext)]
		name = strings.TrimSpace(base) + ext
	}

	return name
}

// UniqueWorkDir creates a fresh per-transfer directory under baseDir so
// concurrent transfers of identically named files never collide.
func (f *FileOperations) UniqueWorkDir(baseDir string) (string, error) {
	dir := filepath.Join(baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	return dir, nil
}

// RemoveArtifacts deletes a transfer's working directory and everything
// in it. Missing directories are not an error.
func (f *FileOperations) RemoveArtifacts(workDir string) error {
	if workDir == "" {
		return nil
	}
	err := os.RemoveAll(workDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// EnsureDir creates the parent directory of path if it doesn't exist
func (f *FileOperations) EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}

// FileExists checks if a file exists
func (f *FileOperations) FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetFileSize returns the size of a file
func (f *FileOperations) GetFileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// AtomicRename performs an atomic file rename operation
func (f *FileOperations) AtomicRename(oldPath, newPath string) error {
	return os.Rename(oldPath, newPath)
}

// DetectPartialDownload checks if a partial download exists and returns its size
func (f *FileOperations) DetectPartialDownload(outputPath string) (bool, int64, error) {
	partPath := outputPath + ".part"

	info, err := os.Stat(partPath)
	if os.IsNotExist(err) {
		return false, 0, nil
	}
	if err != nil {
		return false, 0, err
	}

	return true, info.Size(), nil
}

// CreatePartialFile creates or truncates a partial download file,
// pre-allocating space for byte-offset segment writes.
func (f *FileOperations) CreatePartialFile(partPath string, size int64) (err error) {
	file, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create partial file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := file.Truncate(size); err != nil {
		return fmt.Errorf("failed to allocate file space: %w", err)
	}

	return nil
}
