// Package storage implements the file-level durability primitives of
// §4.5: flushToStorage, the exact six-step crashSafeWriteFile sequence,
// and ensureDatafileIntegrity. The step ordering here is mandated by the
// spec this package implements and has no equivalent primitive in the
// reference corpus's own (binary, offset-addressed) data file, so it is
// hand-implemented against the os package rather than adapted from one.
package storage

import (
	"os"
	"path/filepath"
)

// FlushToStorage fsyncs path and closes the handle used to do so. Most
// platforms can fsync a directory by opening it for read; on platforms
// that cannot (isDir and the open fails), the flush is treated as a
// documented no-op rather than an error — a durability weakness limited
// to the very first datafile creation.
func FlushToStorage(path string, isDir bool) error {
	flags := os.O_RDONLY
	if !isDir {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		if isDir {
			return nil
		}
		return err
	}
	defer f.Close()
	return f.Sync()
}

// CrashSafeWriteFile writes data to filename via the strict sequence
// required for the rename to be the only thing that can make the new
// content visible:
//
//  1. fsync the parent directory
//  2. fsync filename, if it already exists
//  3. write filename~ (truncate-create)
//  4. fsync filename~
//  5. rename filename~ -> filename (atomic on POSIX)
//  6. fsync the parent directory again
//
// Any step failing aborts the sequence and returns that error; no
// partial state is ever observable through filename.
func CrashSafeWriteFile(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	tmp := filename + "~"

	if err := FlushToStorage(dir, true); err != nil {
		return err
	}

	if _, err := os.Stat(filename); err == nil {
		if err := FlushToStorage(filename, false); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := FlushToStorage(tmp, false); err != nil {
		return err
	}

	if err := os.Rename(tmp, filename); err != nil {
		return err
	}

	if err := FlushToStorage(dir, true); err != nil {
		return err
	}
	return nil
}

// EnsureDatafileIntegrity recovers from a crash that landed between
// steps 3 and 5 of CrashSafeWriteFile: if filename exists, there is
// nothing to do; else if filename~ exists, the crash happened just
// before the rename, so finish it; else this is a first run and an
// empty filename is created.
func EnsureDatafileIntegrity(filename string) error {
	if _, err := os.Stat(filename); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	tmp := filename + "~"
	if _, err := os.Stat(tmp); err == nil {
		return os.Rename(tmp, filename)
	} else if !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}
