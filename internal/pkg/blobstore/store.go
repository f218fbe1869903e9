package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
	log "github.com/sirupsen/logrus"
)

const (
	fanoutWidth = 2
	digestLen   = sha256.Size * 2
	maxExtLen   = 16
	tmpDirName  = ".tmp"
)

// Store keeps blob bytes in a local content-addressed tree:
//
//	<root>/<digest[0:2]>/<digest><ext>
//
// Every path handed to the filesystem goes through Resolve first.
type Store struct {
	root  string
	tmp   string
	locks fanoutLocks
}

// New creates a store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	tmp := filepath.Join(resolved, tmpDirName)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Store{root: resolved, tmp: tmp}, nil
}

// Root returns the absolute, symlink-free storage root.
func (s *Store) Root() string { return s.root }

// Lock acquires the mutual-exclusion point for digest and returns the unlock
// func. Callers hold it across "commit blob + insert record" and across
// "count references + delete blob" so the two never interleave for one digest.
func (s *Store) Lock(digest string) func() {
	return s.locks.lock(digest)
}

// ValidDigest reports whether d is a lowercase hex SHA-256 digest.
func ValidDigest(d string) bool {
	if len(d) != digestLen {
		return false
	}
	for i := 0; i < len(d); i++ {
		c := d[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// CleanExtension returns ext when it can be used as a blob name suffix and ""
// otherwise.
func CleanExtension(ext string) string {
	if len(ext) < 2 || len(ext) > maxExtLen+1 || ext[0] != '.' {
		return ""
	}
	for _, r := range ext[1:] {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !ok {
			return ""
		}
	}
	return ext
}

// LocationFor maps a digest and extension to its slash-separated path
// relative to the storage root.
func LocationFor(digest, ext string) (string, error) {
	if !ValidDigest(digest) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	if ext != "" && CleanExtension(ext) != ext {
		return "", fmt.Errorf("%w: extension %q", ErrInvalidPath, ext)
	}
	return digest[:fanoutWidth] + "/" + digest + ext, nil
}

// Resolve turns a stored relative path into an absolute path and verifies it
// stays inside the root, after following any symlinks that already exist.
func (s *Store) Resolve(relPath string) (string, error) {
	if strings.TrimSpace(relPath) == "" || strings.ContainsRune(relPath, 0) {
		return "", ErrInvalidPath
	}
	native := filepath.FromSlash(relPath)
	if strings.HasPrefix(relPath, "/") || strings.HasPrefix(relPath, `\`) || filepath.IsAbs(native) || filepath.VolumeName(native) != "" {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}

	abs := filepath.Join(s.root, native)
	if !within(s.root, abs) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}
	if first := strings.SplitN(filepath.ToSlash(filepath.Clean(native)), "/", 2)[0]; first == tmpDirName {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relPath)
	}

	real, err := resolveExisting(abs)
	if err != nil {
		return "", err
	}
	if !within(s.root, real) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, relPath)
	}
	return real, nil
}

// Put writes r under the location of digest+ext and returns that location.
// The bytes are hashed on the way to disk; if they do not hash to digest
// nothing is placed and ErrDigestMismatch is returned.
func (s *Store) Put(ctx context.Context, r io.Reader, digest, ext string) (string, error) {
	pb, err := s.Stage(ctx, r, digest, ext)
	if err != nil {
		return "", err
	}
	if err := pb.Commit(); err != nil {
		return "", err
	}
	return pb.RelPath(), nil
}

// PendingBlob is content fully written to the staging area and verified
// against its digest, not yet visible at its final path.
type PendingBlob struct {
	rel     string
	dst     string
	pending *renameio.PendingFile
}

// RelPath is the location the blob will occupy once committed.
func (b *PendingBlob) RelPath() string { return b.rel }

// Commit moves the blob into place. An existing blob at the destination is
// left untouched since it holds the same bytes.
func (b *PendingBlob) Commit() error {
	if _, err := os.Lstat(b.dst); err == nil {
		return b.pending.Cleanup()
	} else if !errors.Is(err, fs.ErrNotExist) {
		_ = b.pending.Cleanup()
		return fmt.Errorf("stat blob: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.dst), 0o755); err != nil {
		_ = b.pending.Cleanup()
		return fmt.Errorf("create fan-out dir: %w", err)
	}
	if err := b.pending.CloseAtomicallyReplace(); err != nil {
		_ = b.pending.Cleanup()
		return fmt.Errorf("place blob: %w", err)
	}
	return nil
}

// Discard drops the staged bytes.
func (b *PendingBlob) Discard() {
	if err := b.pending.Cleanup(); err != nil {
		log.WithError(err).WithField("blob", b.rel).Debug("discard staged blob")
	}
}

// Stage streams r into the staging directory and verifies it hashes to digest.
// Nothing appears at the final path until Commit.
func (s *Store) Stage(ctx context.Context, r io.Reader, digest, ext string) (*PendingBlob, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is required")
	}
	rel, err := LocationFor(digest, ext)
	if err != nil {
		return nil, err
	}
	dst, err := s.Resolve(rel)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pending, err := renameio.TempFile(s.tmp, dst)
	if err != nil {
		return nil, fmt.Errorf("create staged blob: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(pending, h), &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("write blob: %w", err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != digest {
		_ = pending.Cleanup()
		return nil, fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, got, digest)
	}

	return &PendingBlob{rel: rel, dst: dst, pending: pending}, nil
}

// Open opens the blob stored at relPath for reading.
func (s *Store) Open(relPath string) (*os.File, error) {
	p, err := s.Resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, relPath)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidPath, relPath)
	}
	return f, nil
}

// Exists reports whether a blob is present at relPath.
func (s *Store) Exists(relPath string) (bool, error) {
	p, err := s.Resolve(relPath)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DeleteIfUnreferenced removes the blob at relPath when refs is zero. refs
// must come from the catalog while the caller holds Lock(digest). It reports
// whether a file was actually removed; an already missing blob is not an error.
func (s *Store) DeleteIfUnreferenced(digest, relPath string, refs int64) (bool, error) {
	if refs != 0 {
		return false, nil
	}
	if !ValidDigest(digest) {
		return false, fmt.Errorf("%w: %q", ErrInvalidDigest, digest)
	}
	if !strings.HasPrefix(path.Base(filepath.ToSlash(relPath)), digest) {
		return false, fmt.Errorf("%w: %s does not belong to %s", ErrDigestMismatch, relPath, digest)
	}
	p, err := s.Resolve(relPath)
	if err != nil {
		return false, err
	}

	removed := true
	if err := os.Remove(p); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("remove blob: %w", err)
		}
		removed = false
	}
	s.removeFanoutDir(p)
	return removed, nil
}

// removeFanoutDir drops the blob's fan-out directory when it is empty.
// Errors are ignored: the directory usually still holds other blobs.
func (s *Store) removeFanoutDir(blobPath string) {
	dir := filepath.Dir(blobPath)
	if dir == s.root || !within(s.root, dir) {
		return
	}
	if err := os.Remove(dir); err != nil {
		log.WithError(err).WithField("dir", dir).Debug("fan-out dir kept")
	}
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting follows symlinks in the longest existing prefix of p and
// re-attaches the components that do not exist yet.
func resolveExisting(p string) (string, error) {
	var missing []string
	cur := p
	for {
		real, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				real = filepath.Join(real, missing[i])
			}
			return real, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
