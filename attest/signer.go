// Package attest implements the Attestation Signer (spec §4.6): a
// narrow capability that signs exactly one message schema --
// H_domain(batch_id || next_state_root || auxiliary_roots...) -- and
// never accepts raw bytes to sign. Grounded on crypto/secp256k1.go's
// Sign/Verify (deterministic-nonce ECDSA) and crypto/hash.go's
// DomainHash.
package attest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
)

// ErrNoRoots is returned by SignAttestation when called with no roots --
// a batch always has at least a primary next_state_root to sign over.
var ErrNoRoots = errors.New("attest: at least one root (next_state_root) is required")

// Signer holds the node's private key and exposes only the attestation
// message schema for signing. This is a deliberate narrowing from the
// teacher's crypto.Sign(digest, prv), which accepts any 32-byte digest --
// spec §9's signer-isolation design note requires that this package
// never signs anything outside the H_domain(batch_id, roots...) schema.
type Signer struct {
	prv *crypto.PrivateKey
	pub crypto.PublicKey
}

// NewSigner wraps a loaded private key as a Signer.
func NewSigner(prv *crypto.PrivateKey) *Signer {
	return &Signer{prv: prv, pub: prv.PublicKey()}
}

// LoadSigner reads a hex-encoded private key scalar from path (spec §6's
// private_key_path), as a mounted secret. The key is never logged or
// otherwise serialized after loading.
func LoadSigner(path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("attest: reading private key file: %w", err)
	}
	hexStr := strings.TrimSpace(string(raw))
	hexStr = strings.TrimPrefix(hexStr, "0x")

	keyBytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, fmt.Errorf("attest: decoding private key: %w", err)
	}

	prv, err := crypto.PrivateKeyFromBytes(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("attest: loading private key: %w", err)
	}
	return NewSigner(prv), nil
}

// PublicKey returns the signer's public key, the node's stable identity.
func (s *Signer) PublicKey() crypto.PublicKey { return s.pub }

// SignAttestation signs the canonical attestation message for batchID
// against roots (next_state_root followed by any profile-declared
// auxiliary roots, in profile order). It is the only signing entry point
// this package exposes.
func (s *Signer) SignAttestation(batchID uint64, roots ...crypto.Hash) (crypto.Signature, error) {
	if len(roots) == 0 {
		return crypto.Signature{}, ErrNoRoots
	}
	message := crypto.DomainHash(batchID, roots...)
	return crypto.Sign(message.Bytes(), s.prv)
}

// VerifyAttestation checks that sig attests batchID/roots under pub.
func VerifyAttestation(pub crypto.PublicKey, batchID uint64, sig crypto.Signature, roots ...crypto.Hash) bool {
	if len(roots) == 0 {
		return false
	}
	message := crypto.DomainHash(batchID, roots...)
	return crypto.Verify(pub, message.Bytes(), sig)
}
