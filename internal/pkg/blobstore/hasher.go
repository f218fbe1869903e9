package blobstore

import (
	"crypto/md5" // #nosec G501 -- display checksum only
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// DefaultChunkSize bounds the memory used while hashing an upload.
const DefaultChunkSize = 1 << 20

// Digests is the result of one hashing pass over a blob.
//
// SHA256 is the identity of the content. MD5 is kept for display in the UI
// and must never be used for dedup or any security decision.
type Digests struct {
	SHA256 string
	MD5    string
	Size   int64
}

// Hash reads r to EOF in DefaultChunkSize chunks and rewinds it to offset 0.
func Hash(r io.ReadSeeker) (Digests, error) {
	return HashChunked(r, DefaultChunkSize)
}

// HashChunked is Hash with an explicit chunk size. The digests do not depend
// on chunkSize.
func HashChunked(r io.ReadSeeker, chunkSize int) (Digests, error) {
	var zero Digests
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	sha := sha256.New()
	sum := md5.New() // #nosec G401
	buf := make([]byte, chunkSize)
	var size int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sha.Write(buf[:n])
			sum.Write(buf[:n])
			size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return zero, fmt.Errorf("read content: %w", err)
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return zero, fmt.Errorf("rewind content: %w", err)
	}

	return Digests{
		SHA256: hex.EncodeToString(sha.Sum(nil)),
		MD5:    hex.EncodeToString(sum.Sum(nil)),
		Size:   size,
	}, nil
}
