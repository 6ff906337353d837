package procutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// PIDAlive reports whether a process with the given pid exists. A process
// owned by another user (EPERM from the probe) counts as alive.
func PIDAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

// RunLock guards a run's stage directory against two runner processes
// touching the same run concurrently. It is a plain PID file: the PID
// recorded inside is checked for liveness with PIDAlive so a crashed
// runner's stale lock doesn't wedge every future resume attempt.
type RunLock struct {
	path string
}

// AcquireRunLock creates the lock file at path, recording the current
// process id. If a lock file already exists and its recorded pid is
// still alive, it returns an error naming that pid. If the file exists
// but its owner is dead (or the file is unreadable/garbled), the stale
// lock is removed and acquisition proceeds.
func AcquireRunLock(path string) (*RunLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if b, err := os.ReadFile(path); err == nil {
		if pid, perr := strconv.Atoi(strings.TrimSpace(string(b))); perr == nil && PIDAlive(pid) {
			return nil, fmt.Errorf("run already in progress (pid %d holds %s)", pid, path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale run lock: %w", err)
		}
	}
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	return &RunLock{path: path}, nil
}

// Release removes the lock file. Releasing a lock that no longer exists
// is not an error, since a resumed run may have already been released by
// a previous process that exited uncleanly.
func (l *RunLock) Release() error {
	if l == nil {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
