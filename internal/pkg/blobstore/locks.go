package blobstore

import (
	"encoding/hex"
	"sync"
)

const lockStripes = 256

// fanoutLocks holds one mutex per fan-out directory. Keying by the directory
// rather than the full digest also serialises the "remove empty directory"
// cleanup against a concurrent commit of a different blob into it.
type fanoutLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *fanoutLocks) lock(digest string) func() {
	mu := &l.stripes[stripeFor(digest)]
	mu.Lock()
	return mu.Unlock
}

func stripeFor(digest string) int {
	if len(digest) < fanoutWidth {
		return 0
	}
	b, err := hex.DecodeString(digest[:fanoutWidth])
	if err != nil || len(b) != 1 {
		return 0
	}
	return int(b[0])
}
