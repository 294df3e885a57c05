package manager

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"hash"
	"hash/crc32"
)

// Checksum is a client-supplied digest for a single chunk, verified before
// any byte of the chunk is committed.
type Checksum struct {
	// Algorithm names the digest algorithm, e.g. "sha1".
	Algorithm string
	// Sum is the expected digest value.
	Sum []byte
}

// SupportedChecksumAlgorithms lists the algorithms clients may use in the
// order they are advertised. SHA-1 is required by the checksum extension,
// the others are cheap to support on top.
var SupportedChecksumAlgorithms = []string{"sha1", "md5", "crc32"}

func newChecksumHash(algorithm string) (hash.Hash, bool) {
	switch algorithm {
	case "sha1":
		return sha1.New(), true
	case "md5":
		return md5.New(), true
	case "crc32":
		return crc32.NewIEEE(), true
	default:
		return nil, false
	}
}

// verify reports whether data digests to the expected sum. The second return
// value is false when the algorithm is unknown.
func (c Checksum) verify(data []byte) (matches bool, supported bool) {
	h, ok := newChecksumHash(c.Algorithm)
	if !ok {
		return false, false
	}

	h.Write(data)
	return bytes.Equal(h.Sum(nil), c.Sum), true
}
