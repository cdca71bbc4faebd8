package merkle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// ErrFieldElementOutOfRange is returned when a decoded field element is
// not strictly less than the STARK-friendly field's prime.
var ErrFieldElementOutOfRange = errors.New("merkle: field element out of range for STARK prime field")

// ErrLeafFieldCount is returned when a composite leaf's field count does
// not match the tree's configured leaf width.
var ErrLeafFieldCount = errors.New("merkle: wrong number of leaf fields for this tree")

// FieldElement is a single StarkEx-style leaf field: a big-endian 256-bit
// integer bounded by the STARK prime, canonically encoded as a fixed
// 32-byte word inside a composite leaf (spec §3: "leaves are composite
// structures serialized to a canonical byte form" for the perpetual
// profile).
type FieldElement [32]byte

// starkPrime is the modulus of the STARK-friendly field StarkEx leaf
// fields are drawn from: 2^251 + 17*2^192 + 1.
var starkPrime = func() *uint256.Int {
	p, err := uint256.FromHex("0x800000000000011000000000000000000000000000000000000000000000001")
	if err != nil {
		panic(fmt.Sprintf("merkle: invalid STARK prime constant: %v", err))
	}
	return p
}()

// DecodeFieldElement hex-decodes s (with or without a "0x" prefix) into a
// FieldElement, left-padding to 32 bytes and validating it is strictly
// less than the STARK prime.
func DecodeFieldElement(s string) (FieldElement, error) {
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	b, err := hex.DecodeString(digits)
	if err != nil {
		return FieldElement{}, fmt.Errorf("merkle: decoding field element: %w", err)
	}
	if len(b) > 32 {
		return FieldElement{}, fmt.Errorf("%w: %d bytes", ErrFieldElementOutOfRange, len(b))
	}
	var fe FieldElement
	copy(fe[32-len(b):], b)

	v := new(uint256.Int).SetBytes(fe[:])
	if v.Cmp(starkPrime) >= 0 {
		return FieldElement{}, ErrFieldElementOutOfRange
	}
	return fe, nil
}

// EncodeCompositeLeaf canonically serializes a composite leaf's field
// elements by concatenating their 32-byte big-endian words in order.
// This is the canonical byte form hashed as a tree leaf; a single-field
// leaf (e.g. stark_ex's vault tree, if configured with one field) is just
// the degenerate one-element case.
func EncodeCompositeLeaf(fields []FieldElement) []byte {
	out := make([]byte, 0, 32*len(fields))
	for _, f := range fields {
		out = append(out, f[:]...)
	}
	return out
}
