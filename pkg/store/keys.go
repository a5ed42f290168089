package store

import "encoding/binary"

// Keys are big-endian encoded so that bbolt's natural byte-order cursor
// iteration doubles as ascending numeric iteration and as prefix scans
// for composite keys, the way the teacher's boltdb.go uses raw string
// ids as keys for simple lookup-by-id.

func idKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func idFromKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}

func u64Key(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// compositeKey concatenates two int64 ids so that a prefix scan on the
// first id's bytes enumerates every row for it, in id order.
func compositeKey(a, b int64) []byte {
	k := make([]byte, 16)
	binary.BigEndian.PutUint64(k[:8], uint64(a))
	binary.BigEndian.PutUint64(k[8:], uint64(b))
	return k
}

func ownerKey(entity string, entityID, userID int64) []byte {
	k := make([]byte, 0, len(entity)+1+8+8)
	k = append(k, entity...)
	k = append(k, 0)
	k = append(k, idKey(entityID)...)
	k = append(k, idKey(userID)...)
	return k
}

func ownerPrefix(entity string, entityID int64) []byte {
	k := make([]byte, 0, len(entity)+1+8)
	k = append(k, entity...)
	k = append(k, 0)
	k = append(k, idKey(entityID)...)
	return k
}
