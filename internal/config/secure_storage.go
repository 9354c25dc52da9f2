// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// SecureWriteFile writes data to filename atomically, via a same-directory
// temp file that's chmod'd to 0600 before the rename.
func SecureWriteFile(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := setSecurePermissions(tempFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set secure permissions: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

func setSecurePermissions(filename string) error {
	uid := os.Getuid()
	gid := os.Getgid()

	if err := os.Chown(filename, uid, gid); err != nil {
		return fmt.Errorf("failed to set ownership: %w", err)
	}

	if err := os.Chmod(filename, 0600); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	return nil
}

// SecureReadFile refuses to read a file not owned by the current user or
// readable/writable by anyone else, since it backs the threat API
// rate-limit state and similar low-sensitivity but tamper-relevant files.
func SecureReadFile(filename string) ([]byte, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if int(stat.Uid) != os.Getuid() {
			return nil, fmt.Errorf("file is not owned by current user")
		}

		mode := info.Mode()
		if mode&0077 != 0 {
			return nil, fmt.Errorf("file has insecure permissions: %s", mode.String())
		}
	}

	return os.ReadFile(filename)
}
