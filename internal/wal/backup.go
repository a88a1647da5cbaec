package wal

import (
	"fmt"
	"os"
)

// maxBackupGenerations is the number of ".bak", ".bak.1", ".bak.2" copies
// kept per corrupted file; older generations are dropped.
const maxBackupGenerations = 3

// rotateToBackup renames path's current contents into a generation chain
// (path.bak, path.bak.1, path.bak.2, oldest dropped) and leaves no file at
// path — the caller is responsible for writing a fresh one if needed.
func rotateToBackup(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	oldest := fmt.Sprintf("%s.bak.%d", path, maxBackupGenerations-1)
	_ = os.Remove(oldest)
	for i := maxBackupGenerations - 2; i >= 1; i-- {
		from := fmt.Sprintf("%s.bak.%d", path, i)
		to := fmt.Sprintf("%s.bak.%d", path, i+1)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return fmt.Errorf("rotate backup %s -> %s: %w", from, to, err)
			}
		}
	}
	if _, err := os.Stat(path + ".bak"); err == nil {
		if err := os.Rename(path+".bak", path+".bak.1"); err != nil {
			return fmt.Errorf("rotate backup: %w", err)
		}
	}
	return os.Rename(path, path+".bak")
}
