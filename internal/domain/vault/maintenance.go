package vault

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"guestvault/internal/pkg/blobstore"
)

// SweepResult reports one orphan sweep.
type SweepResult struct {
	DryRun         bool  `json:"dry_run"`
	Scanned        int   `json:"scanned"`
	Orphans        int   `json:"orphans"`
	Deleted        int   `json:"deleted"`
	Failed         int   `json:"failed"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
}

// Sweep finds blobs that no record points at, for example after a failed
// cleanup or a crash between writing a blob and recording it. With apply
// false it only counts them.
func (s *Service) Sweep(ctx context.Context, apply bool) (SweepResult, error) {
	res := SweepResult{DryRun: !apply}

	blobs, err := s.store.List(ctx)
	if err != nil {
		return res, err
	}
	for _, b := range blobs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		orphan, removed, err := s.sweepOne(ctx, b, apply)
		if err != nil {
			res.Failed++
			log.WithError(err).WithField("blob", b.RelPath).Warn("sweep failed for blob")
			continue
		}
		if !orphan {
			continue
		}
		res.Orphans++
		if !apply || removed {
			res.ReclaimedBytes += b.Size
		}
		if removed {
			res.Deleted++
		}
	}

	log.WithFields(log.Fields{
		"dry_run": res.DryRun,
		"scanned": res.Scanned,
		"orphans": res.Orphans,
		"deleted": res.Deleted,
	}).Info("blob sweep finished")
	return res, nil
}

// sweepOne counts references by stored path, so a blob whose digest is still
// referenced under another extension is reclaimed too.
func (s *Service) sweepOne(ctx context.Context, b blobstore.BlobInfo, apply bool) (orphan, removed bool, err error) {
	unlock := s.store.Lock(b.Digest)
	defer unlock()

	refs, err := s.repo.CountByStoredPath(ctx, b.RelPath)
	if err != nil || refs > 0 {
		return false, false, err
	}
	if !apply {
		return true, false, nil
	}
	removed, err = s.store.DeleteIfUnreferenced(b.Digest, b.RelPath, refs)
	return true, removed, err
}

// VerifyResult lists the records whose blob is gone or no longer matches.
type VerifyResult struct {
	Records int     `json:"records"`
	Blobs   int     `json:"blobs"`
	Missing []int64 `json:"missing"`
	Corrupt []int64 `json:"corrupt"`
}

type blobState int

const (
	blobOK blobState = iota
	blobMissing
	blobCorrupt
)

// Verify rehashes every referenced blob once and compares it with the
// catalog.
func (s *Service) Verify(ctx context.Context) (VerifyResult, error) {
	res := VerifyResult{Missing: []int64{}, Corrupt: []int64{}}

	files, err := s.repo.List(ctx)
	if err != nil {
		return res, err
	}

	states := make(map[string]blobState)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Records++
		st, ok := states[f.StoredRelPath]
		if !ok {
			st, err = s.checkBlob(f)
			if err != nil {
				return res, err
			}
			states[f.StoredRelPath] = st
			res.Blobs++
		}
		switch st {
		case blobMissing:
			res.Missing = append(res.Missing, f.ID)
		case blobCorrupt:
			res.Corrupt = append(res.Corrupt, f.ID)
		}
	}
	return res, nil
}

func (s *Service) checkBlob(f File) (blobState, error) {
	blob, err := s.store.Open(f.StoredRelPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return blobMissing, nil
		}
		return blobOK, err
	}
	defer blob.Close()

	d, err := blobstore.Hash(blob)
	if err != nil {
		return blobOK, err
	}
	if d.SHA256 != f.SHA256 || d.Size != f.Size {
		return blobCorrupt, nil
	}
	return blobOK, nil
}
