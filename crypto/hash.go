// Package crypto provides the hashing and signing primitives shared by the
// Merkle fact store, the versioned tree, and the attestation signer.
package crypto

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// HashLength is the size in bytes of a node or leaf hash.
const HashLength = 32

// Hash is the 32-byte output of the domain hash function.
type Hash [HashLength]byte

// BytesToHash left-pads (or truncates from the left) b into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Hash{} }

// Bytes returns the raw bytes of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Keccak256 hashes the concatenation of data using Keccak-256.
//
// This stands in for the Stark-friendly field hash a production profile
// would use (Pedersen/Poseidon over the Stark field); the pack's example
// code hashes with Keccak-256 throughout (trie commitments, attestation
// digests, sequencer batch IDs) and no Stark-field hash ships in the
// pack, so domain separation is layered on top of Keccak-256 instead.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash hashes data and returns it as a Hash.
func Keccak256Hash(data ...[]byte) Hash {
	return BytesToHash(Keccak256(data...))
}

// HashPair computes the parent node hash for two children: H(left || right).
func HashPair(left, right Hash) Hash {
	return Keccak256Hash(left[:], right[:])
}

// domainPrefix tags a message with a fixed separator so that attestation
// digests can never collide with Merkle node hashes even though both use
// Keccak256 underneath.
var domainPrefix = []byte("starkex-dac/attestation-v1")

// DomainHash computes the canonical attestation message hash:
//
//	H_domain(batch_id || next_state_root || auxiliary_roots...)
//
// batchID is encoded as an 8-byte big-endian integer so that the digest is
// unambiguous regardless of the number of auxiliary roots supplied.
func DomainHash(batchID uint64, roots ...Hash) Hash {
	var idBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], batchID)

	parts := make([][]byte, 0, len(roots)+2)
	parts = append(parts, domainPrefix, idBuf[:])
	for _, r := range roots {
		parts = append(parts, r[:])
	}
	return Keccak256Hash(parts...)
}
