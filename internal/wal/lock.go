package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Lock is an advisory exclusive lock on the daemon's pid file,
// guaranteeing a single writer owns the state directory at a time, held
// for the whole process lifetime.
type Lock struct {
	f *os.File
}

// AcquirePidLock opens (creating if needed) pidPath and takes a
// non-blocking exclusive flock on it. A second daemon over the same
// state directory must fail fast rather than block behind the first.
func AcquirePidLock(pidPath string) (*Lock, error) {
	if dir := filepath.Dir(pidPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	f, err := os.OpenFile(pidPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open pid file %s: %w", pidPath, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("another daemon already owns %s: %w", pidPath, err)
	}
	if err := f.Truncate(0); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.WriteString(fmt.Sprintf("%d\n", os.Getpid())); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the pid file. Nil-safe.
func (l *Lock) Release() {
	if l == nil || l.f == nil {
		return
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	_ = l.f.Close()
}
