package vault

import "errors"

var (
	ErrNoContent       = errors.New("no file content")
	ErrInvalidFilename = errors.New("filename is empty after sanitizing")
	ErrFileNotFound    = errors.New("file not found")
	ErrBlobMissing     = errors.New("stored content is missing")
	ErrForbidden       = errors.New("admin access required")
)
