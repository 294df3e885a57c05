package uid

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// Uid returns a new upload id consisting of 16 bytes from a
// cryptographically strong pseudo-random generator, encoded as a
// 32-character hexadecimal string.
func Uid() string {
	id := make([]byte, 16)
	_, err := io.ReadFull(rand.Reader, id)
	if err != nil {
		// This is probably an appropriate way to handle errors from our
		// source for random bits.
		panic(err)
	}

	return hex.EncodeToString(id)
}
