package dataset

import (
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/hydroframe/scenario-engine/pkg/types"
)

// Hash computes the 64-bit content fingerprint spec.md §3 assigns a
// Dataset: a deterministic function of name, units, dimension, type,
// the canonical value bytes, and metadata. Two datasets hash equal iff
// every one of those fields is equal (invariant 2).
//
// Fields are written length-prefixed so that e.g. name="ab",units="c"
// cannot collide with name="a",units="bc"; metadata keys are sorted so
// map iteration order never affects the result.
func Hash(name, units, dimension string, dtype types.DatasetType, value []byte, metadata map[string]string) uint64 {
	h := xxhash.New()
	writeField(h, []byte(name))
	writeField(h, []byte(units))
	writeField(h, []byte(dimension))
	writeField(h, []byte(dtype))
	writeField(h, value)

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(h, []byte(k))
		writeField(h, []byte(metadata[k]))
	}

	return h.Sum64()
}

func writeField(h *xxhash.Digest, b []byte) {
	var lenBuf [8]byte
	n := uint64(len(b))
	for i := 0; i < 8; i++ {
		lenBuf[i] = byte(n >> (8 * i))
	}
	h.Write(lenBuf[:])
	h.Write(b)
}
