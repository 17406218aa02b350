// Package filesystem contains helpers for the node data directory.
package filesystem

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// OwnerReadWriteExec is the permission used for directories created by the node.
const OwnerReadWriteExec = 0o700

const lockFile = "cardmesh.lock"

// GetUserHomeDirectory returns the user home directory if one is set.
func GetUserHomeDirectory() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// GetCanonicalPath returns an os-specific full path:
// ~ is replaced with the user's home dir path, ${vars} and $vars are expanded
// and the result is cleaned.
func GetCanonicalPath(p string) string {
	if strings.HasPrefix(p, "~/") || strings.HasPrefix(p, "~\\") {
		if home := GetUserHomeDirectory(); home != "" {
			p = home + p[1:]
		}
	}
	return filepath.Clean(os.ExpandEnv(p))
}

// GetFullDirectoryPath gets the OS specific full path for a named directory.
// The directory is created if it doesn't exist.
func GetFullDirectoryPath(name string) (string, error) {
	path := GetCanonicalPath(name)
	if err := os.MkdirAll(path, OwnerReadWriteExec); err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	return path, nil
}

// Lock takes an exclusive lock on the data directory so that a single node
// operates the local store. The returned function releases the lock.
func Lock(dir string) (func() error, error) {
	fl := flock.New(filepath.Join(dir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("flock %s: %w", fl.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("only one cardmesh instance should be running (locking file %s)", fl.Path())
	}
	return fl.Unlock, nil
}
