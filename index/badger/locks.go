package badger

import (
	"hash/fnv"
	"slices"
	"sync"
)

const lockStripes = 256

// keyLocks serializes writers per DocID using a fixed set of striped
// mutexes. Distinct DocIDs may share a stripe.
type keyLocks struct {
	stripes [lockStripes]sync.Mutex
}

func stripeFor(docID string) int {
	h := fnv.New32a()
	h.Write([]byte(docID))
	return int(h.Sum32() % lockStripes)
}

// lock acquires the stripes covering docIDs in ascending order, so two
// writers with overlapping keys cannot deadlock, and returns the unlock func.
func (k *keyLocks) lock(docIDs ...string) func() {
	idx := make([]int, 0, len(docIDs))
	for _, id := range docIDs {
		idx = append(idx, stripeFor(id))
	}
	slices.Sort(idx)
	idx = slices.Compact(idx)

	for _, i := range idx {
		k.stripes[i].Lock()
	}
	return func() {
		for j := len(idx) - 1; j >= 0; j-- {
			k.stripes[idx[j]].Unlock()
		}
	}
}
