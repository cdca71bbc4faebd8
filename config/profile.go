package config

import "fmt"

// ProfileName names the leaf serialization and tree layout a committee node
// operates under. The auxiliary-roots list included in the signed
// attestation message (spec §4.6) is read off the selected profile's
// AuxiliaryTrees, never sniffed per-batch.
type ProfileName string

const (
	ProfileStarkEx    ProfileName = "stark_ex"
	ProfilePerpetual  ProfileName = "perpetual"
)

// TreeSpec describes one fixed-height tree a profile maintains.
type TreeSpec struct {
	// Name identifies the tree for logging and for matching the gateway
	// batch descriptor's auxiliary_* map keys (e.g. "order").
	Name   string
	Height uint
	// LeafFieldCount is the number of merkle.FieldElement words a leaf of
	// this tree is composed of (spec §3's "composite structures serialized
	// to a canonical byte form"). A batch's update_entries for this tree
	// must carry exactly this many leaf_fields per entry.
	LeafFieldCount int
}

// Profile is the resolved, immutable description of a leaf schema: its
// primary tree plus zero or more auxiliary trees signed over alongside it.
type Profile struct {
	Name    ProfileName
	Primary TreeSpec
	// AuxiliaryTrees are additional trees the batch applier computes and
	// the attestation signer includes in signed-message order. Empty for
	// stark_ex; a single order tree for perpetual.
	AuxiliaryTrees []TreeSpec
}

// profiles is the registry of known profiles. Resolving spec §9's first
// Open Question ("read off the operator's schema, do not guess"): the
// schema is this table, not per-batch inspection of the gateway payload.
var profiles = map[ProfileName]Profile{
	// stark_ex's single tree: a vault leaf is 4 field elements (token,
	// amount, and two balance-like fields).
	ProfileStarkEx: {
		Name:    ProfileStarkEx,
		Primary: TreeSpec{Name: "vault", Height: 31, LeafFieldCount: 4},
	},
	// perpetual's vault leaf is a composite position record (asset id,
	// synthetic balance, collateral balance, funding index, public key);
	// its order leaf is a smaller order record (asset id, amount, nonce).
	ProfilePerpetual: {
		Name:    ProfilePerpetual,
		Primary: TreeSpec{Name: "vault", Height: 64, LeafFieldCount: 5},
		AuxiliaryTrees: []TreeSpec{
			{Name: "order", Height: 64, LeafFieldCount: 3},
		},
	},
}

// ErrUnknownProfile is returned when a config names a profile that is not
// in the registry.
type ErrUnknownProfile struct {
	Name ProfileName
}

func (e *ErrUnknownProfile) Error() string {
	return fmt.Sprintf("config: unknown profile %q", e.Name)
}

// ResolveProfile looks up a Profile by name.
func ResolveProfile(name ProfileName) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, &ErrUnknownProfile{Name: name}
	}
	return p, nil
}

// Trees returns every tree the profile maintains, primary first, in the
// order the attestation message concatenates their roots.
func (p Profile) Trees() []TreeSpec {
	out := make([]TreeSpec, 0, 1+len(p.AuxiliaryTrees))
	out = append(out, p.Primary)
	out = append(out, p.AuxiliaryTrees...)
	return out
}
