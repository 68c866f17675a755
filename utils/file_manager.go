package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"narrator/logging"
)

// ErrWorkspaceBusy is returned when another render already owns the workspace.
var ErrWorkspaceBusy = errors.New("workspace is locked by another render")

// Workspace is a scratch directory owned by exactly one render. The lock file
// next to it keeps a second process from claiming the same name.
type Workspace struct {
	Dir string

	lock   *flock.Flock
	logger *slog.Logger
	once   sync.Once
	err    error
}

// CreateWorkspace creates baseDir/name and takes its lock. Callers must
// defer Close so the directory is removed on every exit path.
func CreateWorkspace(baseDir, name string, logger *slog.Logger) (*Workspace, error) {
	if name == "" {
		return nil, fmt.Errorf("workspace name is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root %s: %w", baseDir, err)
	}

	lock := flock.New(filepath.Join(baseDir, name+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock workspace %s: %w", name, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceBusy, name)
	}

	dir := filepath.Join(baseDir, name)
	// Leftovers from a crashed run under the same name are not ours to reuse.
	if err := os.RemoveAll(dir); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to clear stale workspace %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return &Workspace{
		Dir:    dir,
		lock:   lock,
		logger: logging.NewComponentLogger(logger, "workspace"),
	}, nil
}

// Path returns the absolute location of an intermediate file.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the directory and releases the lock. Safe to call repeatedly.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			w.err = fmt.Errorf("failed to remove workspace %s: %w", w.Dir, err)
			w.logger.Warn("workspace cleanup failed",
				logging.String("path", w.Dir),
				logging.Error(err),
			)
		}
		lockPath := w.lock.Path()
		if err := w.lock.Unlock(); err != nil && w.err == nil {
			w.err = fmt.Errorf("failed to unlock workspace: %w", err)
		}
		_ = os.Remove(lockPath)
		w.logger.Debug("workspace removed", logging.String("path", w.Dir))
	})
	return w.err
}

// MoveFile renames src to dst, copying across filesystems when needed.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".partial"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}

// DownloadFile downloads a file from URL to destination path
func DownloadFile(ctx context.Context, client *http.Client, url, destPath string) error {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return out.Close()
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
