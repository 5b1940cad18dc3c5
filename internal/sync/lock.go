package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another mirror run holds the lock for this directory")

// AcquireLock takes an advisory lock named after localDir inside lockDir.
func AcquireLock(lockDir, localDir string) (*flock.Flock, error) {
	abs, err := filepath.Abs(localDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(lockDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	sum := sha256.Sum256([]byte(abs))
	lock := flock.New(filepath.Join(lockDir, hex.EncodeToString(sum[:8])+".lock"))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, abs)
	}
	return lock, nil
}
