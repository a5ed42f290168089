package dataset

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/hydroframe/scenario-engine/pkg/log"
)

// compressedMagic prefixes deflate-compressed values so Decompress can
// tell a compressed payload from a short, never-compressed one without
// guessing from size alone.
var compressedMagic = []byte{0x1f, 0x9e}

// Compress deflates data and returns the result prefixed with
// compressedMagic when data is longer than threshold; otherwise it
// returns data unchanged, matching spec.md §4.1's "only pay the
// compression cost once a payload is worth it" rule.
func Compress(data []byte, threshold int) []byte {
	if threshold <= 0 || len(data) <= threshold {
		return data
	}

	var buf bytes.Buffer
	buf.Write(compressedMagic)
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		log.Errorf("dataset: flate writer init failed, storing uncompressed: %v", err)
		return data
	}
	if _, err := w.Write(data); err != nil {
		log.Errorf("dataset: flate write failed, storing uncompressed: %v", err)
		return data
	}
	if err := w.Close(); err != nil {
		log.Errorf("dataset: flate close failed, storing uncompressed: %v", err)
		return data
	}
	return buf.Bytes()
}

// tryInflate attempts to inflate value as a compressedMagic-prefixed
// deflate stream. ok is false whenever value doesn't carry the magic
// prefix or fails to inflate, signaling the caller to treat value as
// already-uncompressed rather than as an error — decompression in this
// store is opportunistic (spec.md §4.1/§7).
func tryInflate(value []byte) (out []byte, ok bool) {
	if len(value) < len(compressedMagic) || !bytes.Equal(value[:len(compressedMagic)], compressedMagic) {
		return nil, false
	}
	r := flate.NewReader(bytes.NewReader(value[len(compressedMagic):]))
	defer r.Close()
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, false
	}
	return decoded, true
}
