package db

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// fileLock is an advisory flock(2) lock on path + ".lock". It serializes
// writers across processes sharing the same data directory.
type fileLock struct {
	path string
	file *os.File
}

func newFileLock(path string) *fileLock {
	return &fileLock{path: path + ".lock"}
}

func (l *fileLock) Lock(timeout time.Duration) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: err}
	}

	deadline := time.Now().Add(timeout)
	for {
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			l.file = f
			return nil
		}
		if time.Now().After(deadline) {
			f.Close()
			return &StorageError{Op: "lock", Entity: "file", ID: l.path, Err: fmt.Errorf("%w: %v", ErrLockTimeout, err)}
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// Unlock releases the lock. The lock file itself is never removed.
func (l *fileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	err := l.file.Close()
	l.file = nil
	return err
}
