package blobstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const listConcurrency = 8

// BlobInfo describes one blob file found under the storage root.
type BlobInfo struct {
	RelPath string
	Digest  string
	Size    int64
	ModTime time.Time
}

// List returns every blob under the fan-out directories, sorted by path.
// Files that do not look like blobs are skipped, as is the staging area.
func (s *Store) List(ctx context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out []BlobInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for _, e := range entries {
		if !e.IsDir() || !isFanoutName(e.Name()) {
			continue
		}
		prefix := e.Name()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files, err := os.ReadDir(filepath.Join(s.root, prefix))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			for _, f := range files {
				if !f.Type().IsRegular() {
					continue
				}
				digest := digestFromName(f.Name())
				if digest == "" || digest[:fanoutWidth] != prefix {
					continue
				}
				info, err := f.Info()
				if err != nil {
					continue
				}
				mu.Lock()
				out = append(out, BlobInfo{
					RelPath: prefix + "/" + f.Name(),
					Digest:  digest,
					Size:    info.Size(),
					ModTime: info.ModTime(),
				})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

func isFanoutName(name string) bool {
	if len(name) != fanoutWidth {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func digestFromName(name string) string {
	if len(name) < digestLen {
		return ""
	}
	digest, ext := name[:digestLen], name[digestLen:]
	if !ValidDigest(digest) {
		return ""
	}
	if ext != "" && CleanExtension(ext) != ext {
		return ""
	}
	return digest
}
