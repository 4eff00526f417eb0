// Package digest computes the 64-bit fingerprints used to detect changed
// documents and sections and to identify matched nodes.
package digest

import (
	"encoding/binary"

	"github.com/minio/highwayhash"
)

var key = []byte("gqlpath-digest-key-0123456789ABC")

// Sum64 returns the highwayhash-64 of data.
func Sum64(data []byte) uint64 {
	return highwayhash.Sum64(data, key)
}

// String returns the fingerprint of s.
func String(s string) uint64 {
	return Sum64([]byte(s))
}

// Fields fingerprints an ordered tuple of strings and integers. Each part is
// length-prefixed so ("ab","c") and ("a","bc") differ.
func Fields(strs []string, ints ...int) uint64 {
	var buf []byte
	for _, s := range strs {
		buf = binary.AppendUvarint(buf, uint64(len(s)))
		buf = append(buf, s...)
	}
	for _, n := range ints {
		buf = binary.AppendVarint(buf, int64(n))
	}
	return Sum64(buf)
}
