package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
)

// TODO: Go's standard library does not ship secp256k1; elliptic.P256 stands
// in for it here the way the rest of the pack's placeholder curve code does.
// Swapping in a real secp256k1 implementation only touches this file and
// Signature's R/S interpretation; nothing above this layer depends on the
// curve identity.
var curve = elliptic.P256()

var curveN = curve.Params().N

// PrivateKey is a committee member's signing key.
type PrivateKey struct {
	D *big.Int
	X *big.Int
	Y *big.Int
}

// GenerateKey creates a new random private key.
func GenerateKey() (*PrivateKey, error) {
	k, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{D: k.D, X: k.X, Y: k.Y}, nil
}

// PrivateKeyFromBytes reconstructs a private key from its big-endian scalar
// encoding, as loaded from a mounted secret file (spec §6 private_key_path).
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	d := new(big.Int).SetBytes(b)
	if d.Sign() <= 0 || d.Cmp(curveN) >= 0 {
		return nil, errors.New("crypto: private key scalar out of range")
	}
	x, y := curve.ScalarBaseMult(d.Bytes())
	return &PrivateKey{D: d, X: x, Y: y}, nil
}

// PublicKey returns the public key corresponding to prv.
func (prv *PrivateKey) PublicKey() PublicKey {
	return PublicKey{X: prv.X, Y: prv.Y}
}

// PublicKey identifies a committee member.
type PublicKey struct {
	X *big.Int
	Y *big.Int
}

// Bytes returns the uncompressed 65-byte encoding (0x04 || X || Y).
func (pub PublicKey) Bytes() []byte {
	return elliptic.Marshal(curve, pub.X, pub.Y)
}

// Signature is a 64-byte (R || S) ECDSA signature over a 32-byte digest.
type Signature struct {
	R *big.Int
	S *big.Int
}

// Bytes returns the signature as 64 bytes: 32-byte R || 32-byte S.
func (sig Signature) Bytes() []byte {
	out := make([]byte, 64)
	rBytes := sig.R.Bytes()
	sBytes := sig.S.Bytes()
	copy(out[32-len(rBytes):32], rBytes)
	copy(out[64-len(sBytes):64], sBytes)
	return out
}

// Sign produces a deterministic ECDSA signature over a 32-byte digest using
// an RFC-6979-style HMAC-DRBG nonce: signing the same digest with the same
// key always yields the same signature, which lets the committee loop
// re-sign a batch after a crash without producing a different attestation
// (spec §4.7's crash-recovery ordering depends on this).
func Sign(digest []byte, prv *PrivateKey) (Signature, error) {
	if len(digest) != HashLength {
		return Signature{}, errors.New("crypto: digest must be 32 bytes")
	}

	k := deterministicNonce(prv.D, digest)
	r, s := new(big.Int), new(big.Int)
	var counter byte

	for {
		x, _ := curve.ScalarBaseMult(k.Bytes())
		r.Mod(x, curveN)
		if r.Sign() != 0 {
			e := new(big.Int).SetBytes(digest)
			kInv := new(big.Int).ModInverse(k, curveN)
			s.Mul(prv.D, r)
			s.Add(s, e)
			s.Mul(s, kInv)
			s.Mod(s, curveN)
			if s.Sign() != 0 {
				break
			}
		}
		// Vanishingly unlikely; re-derive with a mixed-in counter.
		counter++
		k = deterministicNonce(prv.D, append(append([]byte{}, digest...), counter))
	}

	return Signature{R: r, S: s}, nil
}

// Verify checks that sig is a valid signature over digest under pub.
func Verify(pub PublicKey, digest []byte, sig Signature) bool {
	if len(digest) != HashLength {
		return false
	}
	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 || sig.R.Cmp(curveN) >= 0 || sig.S.Cmp(curveN) >= 0 {
		return false
	}
	key := &ecdsa.PublicKey{Curve: curve, X: pub.X, Y: pub.Y}
	return ecdsa.Verify(key, digest, sig.R, sig.S)
}

// deterministicNonce derives a per-message nonce k in [1, N-1] from the
// private scalar and digest via an HMAC-SHA256 DRBG, following the shape of
// RFC 6979 section 3.2 (simplified to a single HMAC-DRBG generate step,
// which is sufficient since digest length already matches the hash size).
func deterministicNonce(d *big.Int, digest []byte) *big.Int {
	dBytes := make([]byte, 32)
	d.FillBytes(dBytes)

	v := make([]byte, 32)
	for i := range v {
		v[i] = 0x01
	}
	k := make([]byte, 32)

	mac := hmac.New(sha256.New, k)
	mac.Write(v)
	mac.Write([]byte{0x00})
	mac.Write(dBytes)
	mac.Write(digest)
	k = mac.Sum(nil)

	mac = hmac.New(sha256.New, k)
	mac.Write(v)
	v = mac.Sum(nil)

	mac = hmac.New(sha256.New, k)
	mac.Write(v)
	mac.Write([]byte{0x01})
	mac.Write(dBytes)
	mac.Write(digest)
	k = mac.Sum(nil)

	mac = hmac.New(sha256.New, k)
	mac.Write(v)
	v = mac.Sum(nil)

	for {
		mac = hmac.New(sha256.New, k)
		mac.Write(v)
		t := mac.Sum(nil)

		candidate := new(big.Int).SetBytes(t)
		if candidate.Sign() != 0 && candidate.Cmp(curveN) < 0 {
			return candidate
		}

		mac = hmac.New(sha256.New, k)
		mac.Write(v)
		mac.Write([]byte{0x00})
		k = mac.Sum(nil)

		mac = hmac.New(sha256.New, k)
		mac.Write(v)
		v = mac.Sum(nil)
	}
}
