package ops

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/sideclip/internal/config"
	"github.com/hpungsan/sideclip/internal/errors"
)

// imageExtensions are the file extensions accepted for image file captures.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// IsImageFile reports whether path has an accepted image extension.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ValidateImagePath checks a path before an image file is read for capture:
// 1. Path traversal (.. sequences)
// 2. Extension (image types only)
// 3. Directory restrictions (file must be DIRECTLY in ~/.sideclip/inbox or allowed_paths, no subdirectories)
// 4. Symlink safety (parent dir and file must not be symlinks)
//
// The "no subdirectories" rule keeps an intermediate directory from being swapped for a symlink
// between validation and open. O_NOFOLLOW covers the final component.
func ValidateImagePath(path string, cfg *config.Config) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if !IsImageFile(cleaned) {
		return errors.NewInvalidRequest("path must have an image extension (.png, .jpg, .jpeg, .gif, .webp, .bmp)")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	// Unsafe mode skips directory checks, never symlink checks.
	if cfg == nil || !cfg.AllowUnsafePaths {
		allowedDirs, err := getAllowedDirs(cfg)
		if err != nil {
			return err
		}

		parentDir := filepath.Dir(absPath)
		if !isDirectlyInAllowedDir(parentDir, allowedDirs) {
			return errors.NewInvalidRequest(
				fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v",
					allowedDirs))
		}

		if info, err := os.Lstat(parentDir); err == nil && info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	info, err := os.Lstat(absPath)
	if os.IsNotExist(err) {
		return errors.NewFileNotFound(path)
	}
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("cannot stat path: %v", err))
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	if !info.Mode().IsRegular() {
		return errors.NewInvalidRequest("path must be a regular file")
	}

	return nil
}

// ReadImageFile validates path and reads at most cfg.MaxImageBytes from it.
func ReadImageFile(path string, cfg *config.Config) ([]byte, error) {
	if err := ValidateImagePath(path, cfg); err != nil {
		return nil, err
	}

	f, err := openFileNoFollowRead(filepath.Clean(path))
	if err != nil {
		if _, ok := err.(*errors.ClipError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open image: %w", err))
	}
	defer f.Close()

	var limit int64
	if cfg != nil {
		limit = cfg.MaxImageBytes
	}

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read image: %w", err))
	}
	if limit > 0 && int64(len(data)) > limit {
		actual := int64(len(data))
		if info, err := f.Stat(); err == nil {
			actual = info.Size()
		}
		return nil, errors.NewImageTooLarge(limit, actual)
	}
	return data, nil
}

// FileURL returns the file:// URL recorded as the source of a file capture.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// getAllowedDirs returns the list of allowed directories (absolute, cleaned).
// If an allowed directory is a symlink, it is resolved so matching happens on the real path.
func getAllowedDirs(cfg *config.Config) ([]string, error) {
	defaultDir, err := DefaultInboxDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{defaultDir}

	// Only absolute paths are honored
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		result = append(result, abs)
	}

	return result, nil
}

// isDirectlyInAllowedDir checks if parentDir exactly matches one of the allowed directories.
func isDirectlyInAllowedDir(parentDir string, allowedDirs []string) bool {
	parentDir = filepath.Clean(parentDir)
	for _, dir := range allowedDirs {
		if parentDir == filepath.Clean(dir) {
			return true
		}
	}
	return false
}

// DefaultInboxDir returns the default image inbox (~/.sideclip/inbox).
func DefaultInboxDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, ".sideclip", "inbox"), nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on every platform
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
