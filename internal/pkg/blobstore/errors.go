package blobstore

import "errors"

var (
	ErrInvalidDigest   = errors.New("invalid content digest")
	ErrInvalidPath     = errors.New("invalid blob path")
	ErrPathEscapesRoot = errors.New("blob path escapes storage root")
	ErrDigestMismatch  = errors.New("content does not match digest")
	ErrBlobNotFound    = errors.New("blob not found")
)
