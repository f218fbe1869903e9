package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"guestvault/internal/pkg/blobstore"
)

// Service coordinates the hasher, the blob store and the catalog.
type Service struct {
	repo   Repository
	store  BlobStore
	events Publisher
}

func NewService(repo Repository, store BlobStore) *Service {
	return &Service{repo: repo, store: store}
}

// WithPublisher sets where upload and delete events are sent.
func (s *Service) WithPublisher(p Publisher) *Service {
	s.events = p
	return s
}

type UploadInput struct {
	Filename    string
	ContentType string // as declared by the client, may be empty
	Content     io.ReadSeeker
}

// Upload hashes the content, stores the blob unless it is already present and
// records the upload. Either everything succeeds or no record is left behind.
func (s *Service) Upload(ctx context.Context, in UploadInput) (File, error) {
	if in.Content == nil {
		return File{}, ErrNoContent
	}
	name := SanitizeFilename(in.Filename)
	if name == "" {
		return File{}, ErrInvalidFilename
	}

	digests, err := blobstore.Hash(in.Content)
	if err != nil {
		return File{}, fmt.Errorf("hash upload: %w", err)
	}
	contentType, err := detectContentType(in.Content, in.ContentType)
	if err != nil {
		return File{}, fmt.Errorf("detect content type: %w", err)
	}
	ext := blobstore.CleanExtension(filepath.Ext(name))

	pending, err := s.store.Stage(ctx, in.Content, digests.SHA256, ext)
	if err != nil {
		return File{}, fmt.Errorf("store blob: %w", err)
	}

	unlock := s.store.Lock(digests.SHA256)
	defer unlock()

	if err := ctx.Err(); err != nil {
		pending.Discard()
		return File{}, err
	}
	if err := pending.Commit(); err != nil {
		return File{}, fmt.Errorf("store blob: %w", err)
	}

	f := &File{
		OriginalFilename: name,
		StoredRelPath:    pending.RelPath(),
		ContentType:      contentType,
		Size:             digests.Size,
		SHA256:           digests.SHA256,
		MD5:              digests.MD5,
	}
	if _, err := s.repo.Insert(ctx, f); err != nil {
		s.reclaimLocked(context.WithoutCancel(ctx), digests.SHA256, pending.RelPath())
		return File{}, fmt.Errorf("record upload: %w", err)
	}

	log.WithFields(log.Fields{
		"id":     f.ID,
		"sha256": f.SHA256,
		"size":   f.Size,
	}).Info("file uploaded")
	s.publish(EventFileUploaded, *f)
	return *f, nil
}

func (s *Service) List(ctx context.Context) ([]File, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (File, error) {
	return s.repo.Get(ctx, id)
}

// Download opens the blob of a file for an attachment download. The caller
// closes the returned file and calls CountDownload once the full body went
// out; range and conditional responses are not counted.
func (s *Service) Download(ctx context.Context, id int64) (File, *os.File, error) {
	return s.open(ctx, id)
}

// CountDownload records one completed download. Failures are logged only.
func (s *Service) CountDownload(ctx context.Context, id int64) {
	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		log.WithError(err).WithField("id", id).Warn("download count not updated")
	}
}

// OpenRaw opens the blob of a file for inline preview. Downloads are not
// counted.
func (s *Service) OpenRaw(ctx context.Context, id int64) (File, *os.File, error) {
	return s.open(ctx, id)
}

func (s *Service) open(ctx context.Context, id int64) (File, *os.File, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return File{}, nil, err
	}
	blob, err := s.store.Open(f.StoredRelPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return File{}, nil, ErrBlobMissing
		}
		return File{}, nil, fmt.Errorf("open blob: %w", err)
	}
	return f, blob, nil
}

// Delete removes one file record and reclaims its blob if nothing else
// references it.
func (s *Service) Delete(ctx context.Context, actor Actor, id int64) error {
	if !actor.Admin {
		return ErrForbidden
	}

	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if !ok {
		return ErrFileNotFound
	}

	s.reclaim(context.WithoutCancel(ctx), f.SHA256, f.StoredRelPath)
	s.publish(EventFilesDeleted, map[string]any{"ids": []int64{id}})
	return nil
}

// BulkDelete removes every listed file that exists and returns how many were
// removed. All records go first, in one transaction; blobs are reclaimed
// afterwards so the reference counts see the whole batch.
func (s *Service) BulkDelete(ctx context.Context, actor Actor, ids []int64) (int, error) {
	if !actor.Admin {
		return 0, ErrForbidden
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	rows, err := s.repo.DeleteMany(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}

	type blobRef struct{ digest, relPath string }
	seen := make(map[blobRef]struct{}, len(rows))
	deleted := make([]int64, 0, len(rows))
	bg := context.WithoutCancel(ctx)
	for _, f := range rows {
		deleted = append(deleted, f.ID)
		ref := blobRef{f.SHA256, f.StoredRelPath}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		s.reclaim(bg, f.SHA256, f.StoredRelPath)
	}

	if len(deleted) > 0 {
		s.publish(EventFilesDeleted, map[string]any{"ids": deleted})
	}
	return len(rows), nil
}

func (s *Service) reclaim(ctx context.Context, digest, relPath string) {
	unlock := s.store.Lock(digest)
	defer unlock()
	s.reclaimLocked(ctx, digest, relPath)
}

// reclaimLocked deletes the blob when no record references its digest, or
// when the records that do all point at another extension's blob. The record
// is already gone at this point, so failures are logged rather than returned;
// a blob left behind is an orphan that Sweep reclaims.
func (s *Service) reclaimLocked(ctx context.Context, digest, relPath string) {
	logger := log.WithFields(log.Fields{"sha256": digest, "blob": relPath})

	refs, err := s.repo.CountByDigest(ctx, digest)
	if err == nil && refs > 0 {
		refs, err = s.repo.CountByStoredPath(ctx, relPath)
	}
	if err != nil {
		logger.WithError(err).Warn("reference count failed, blob kept")
		return
	}
	removed, err := s.store.DeleteIfUnreferenced(digest, relPath, refs)
	switch {
	case errors.Is(err, blobstore.ErrPathEscapesRoot), errors.Is(err, blobstore.ErrDigestMismatch):
		logger.WithError(err).Error("refused to delete blob")
	case err != nil:
		logger.WithError(err).Warn("blob delete failed")
	case removed:
		logger.Info("blob reclaimed")
	}
}

func (s *Service) publish(eventType string, payload any) {
	if s.events != nil {
		s.events.Publish(eventType, payload)
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
