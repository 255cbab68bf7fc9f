package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Operating system constants
const (
	OSWindows = "windows"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Temporary file naming
const (
	TempFilePrefix = "wavepipe_"
	WindowsBinDir  = "bin"
	WindowsExeExt  = ".exe"
)

// ErrExecutableNotFound is returned when an external tool cannot be located
var ErrExecutableNotFound = errors.New("executable not found")

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// ExtendPath appends dirs to the PATH of the current process so that child
// processes (yt-dlp looking for ffmpeg) see them too. Dirs already present
// are skipped.
func ExtendPath(dirs []string) error {
	current := os.Getenv("PATH")
	existing := filepath.SplitList(current)
	seen := make(map[string]bool, len(existing))
	for _, dir := range existing {
		seen[dir] = true
	}

	parts := existing
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		parts = append(parts, dir)
	}

	return os.Setenv("PATH", strings.Join(parts, string(os.PathListSeparator)))
}

// ResolveExecutable finds an external tool. An explicit path wins; on Windows
// ./bin/<name>.exe is tried next; then PATH; then each of extraDirs.
func ResolveExecutable(name, explicit string, extraDirs []string) (string, error) {
	if explicit != "" {
		if isExecutableFile(explicit) {
			return explicit, nil
		}
		if path, err := exec.LookPath(explicit); err == nil {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, explicit)
	}

	if runtime.GOOS == OSWindows {
		if cwd, err := os.Getwd(); err == nil {
			candidate := filepath.Join(cwd, WindowsBinDir, name+WindowsExeExt)
			if isExecutableFile(candidate) {
				return candidate, nil
			}
		}
	}

	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}

	for _, dir := range extraDirs {
		candidate := filepath.Join(dir, name)
		if runtime.GOOS == OSWindows {
			candidate += WindowsExeExt
		}
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, name)
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == OSWindows {
		return true
	}
	return info.Mode()&0111 != 0
}

// TempFilePath builds <dir>/wavepipe_<id>.<ext>
func TempFilePath(dir, id, ext string) string {
	return filepath.Join(dir, TempFilePrefix+id+"."+ext)
}

// FileSize returns the size of a regular file, or an error if it is missing
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

// RemoveIfExists deletes path and treats a missing file as success
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveWithPrefix deletes every regular file in dir whose name starts with
// prefix. yt-dlp leaves .part, .ytdl and intermediate container files next to
// the requested output. It returns the removed paths and the first error.
func RemoveWithPrefix(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var removed []string
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := RemoveIfExists(path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, path)
	}
	return removed, firstErr
}

// SweepStale deletes files in dir starting with prefix that were last
// modified more than maxAge ago.
func SweepStale(dir, prefix string, maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-maxAge)
	var removed []string
	var firstErr error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := RemoveIfExists(path); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed = append(removed, path)
	}
	return removed, firstErr
}
