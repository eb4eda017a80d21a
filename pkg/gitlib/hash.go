// Package gitlib reads working-tree state of the git repository around a
// scanned project using libgit2.
package gitlib

import (
	git2go "github.com/libgit2/git2go/v34"
)

const (
	// HashSize is the size of a SHA-1 hash in bytes.
	HashSize = 20
	// shortHashSize is the length of an abbreviated hex hash.
	shortHashSize = 12
	hexShift      = 4
)

// Hash represents a git object hash (SHA-1).
type Hash [HashSize]byte

// HashFromOid converts a libgit2 Oid to Hash.
func HashFromOid(oid *git2go.Oid) Hash {
	var h Hash
	copy(h[:], oid[:])

	return h
}

// String returns the hex representation of the hash.
func (h Hash) String() string {
	const hexChars = "0123456789abcdef"

	buf := make([]byte, HashSize*2)

	for i, byteVal := range h {
		buf[i*2] = hexChars[byteVal>>hexShift]
		buf[i*2+1] = hexChars[byteVal&0x0f]
	}

	return string(buf)
}

// Short returns the abbreviated hex form, or "" for the zero hash.
func (h Hash) Short() string {
	if h.IsZero() {
		return ""
	}

	return h.String()[:shortHashSize]
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}

	return true
}
