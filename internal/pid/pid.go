// Package pid keeps a single acquisition run active per host.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/torquectl/internal/errors"
)

const (
	pidFile = "torquectl.pid"
)

// Path returns the location of the PID file.
func Path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the PID file. It fails with
// ErrAlreadyRunning while the process named in an existing file is alive;
// a stale file is overwritten.
func Write() error {
	errFactory := errors.New()
	path := Path()

	if bytes, err := os.ReadFile(path); err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
		if err == nil && pid != os.Getpid() && alive(pid) {
			return errFactory.WithData(errors.ErrAlreadyRunning, pid)
		}
	} else if !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}

// Remove removes the PID file.
func Remove() error {
	if err := os.Remove(Path()); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}
