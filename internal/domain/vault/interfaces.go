package vault

import (
	"context"
	"io"
	"os"

	"guestvault/internal/pkg/blobstore"
)

// BlobStore is the content-addressed storage the service writes through.
type BlobStore interface {
	Lock(digest string) func()
	Stage(ctx context.Context, r io.Reader, digest, ext string) (*blobstore.PendingBlob, error)
	Open(relPath string) (*os.File, error)
	DeleteIfUnreferenced(digest, relPath string, refs int64) (bool, error)
	List(ctx context.Context) ([]blobstore.BlobInfo, error)
}

// Publisher receives change notifications. Publish must not block.
type Publisher interface {
	Publish(eventType string, payload any)
}

const (
	EventFileUploaded = "file_uploaded"
	EventFilesDeleted = "files_deleted"
)

// Actor is the caller of a mutating operation as established by the session.
type Actor struct {
	Admin bool
}
