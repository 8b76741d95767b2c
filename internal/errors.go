package internal

import (
	"errors"
	"fmt"
	iofs "io/fs"
)

var (
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrInvalidBounds  = errors.New("invalid bounds")
	ErrInvalidExt     = errors.New("invalid extension")

	errStopWalk = errors.New("walk stopped") // sentinel, never surfaces
)

// ConfigError is fatal and is only ever returned by Validate, before any file I/O.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// FileAccessError is recorded in the report and skips one file or subtree.
type FileAccessError struct {
	Path string
	Op   string // "stat", "readdir", "open", "read", "mmap", "archive"
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

func isPermission(err error) bool {
	return errors.Is(err, iofs.ErrPermission)
}
