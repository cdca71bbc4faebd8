package committee

import (
	"encoding/hex"
	"fmt"

	"github.com/starkware-libs/starkex-data-availability-committee/batchapply"
	"github.com/starkware-libs/starkex-data-availability-committee/config"
	"github.com/starkware-libs/starkex-data-availability-committee/crypto"
	"github.com/starkware-libs/starkex-data-availability-committee/gateway"
	"github.com/starkware-libs/starkex-data-availability-committee/merkle"
)

// decodeBatch converts the gateway's wire descriptor into the batchapply
// package's internal Batch, hex-decoding a TreeDelta for every tree profile
// declares (the primary tree plus any auxiliary trees, e.g. "order" for
// perpetual).
func decodeBatch(desc *gateway.BatchDescriptor, profile config.Profile) (batchapply.Batch, error) {
	trees := make(map[string]batchapply.TreeDelta, len(profile.Trees()))

	primaryDelta, err := decodeTreeDelta(desc.PrevRoot, desc.NextRoot, desc.UpdateEntries, profile.Primary.LeafFieldCount)
	if err != nil {
		return batchapply.Batch{}, fmt.Errorf("committee: decoding tree %q: %w", profile.Primary.Name, err)
	}
	trees[profile.Primary.Name] = primaryDelta

	for _, spec := range profile.AuxiliaryTrees {
		prevHex, ok := desc.AuxiliaryPrevRoots[spec.Name]
		if !ok {
			return batchapply.Batch{}, fmt.Errorf("%w: tree %q missing auxiliary_prev_roots entry", batchapply.ErrMissingTreeDelta, spec.Name)
		}
		nextHex, ok := desc.AuxiliaryNextRoots[spec.Name]
		if !ok {
			return batchapply.Batch{}, fmt.Errorf("%w: tree %q missing auxiliary_next_roots entry", batchapply.ErrMissingTreeDelta, spec.Name)
		}
		delta, err := decodeTreeDelta(prevHex, nextHex, desc.AuxiliaryUpdateEntries[spec.Name], spec.LeafFieldCount)
		if err != nil {
			return batchapply.Batch{}, fmt.Errorf("committee: decoding tree %q: %w", spec.Name, err)
		}
		trees[spec.Name] = delta
	}

	return batchapply.Batch{
		BatchID:          desc.BatchID,
		ReferenceBatchID: desc.ReferenceBatchID,
		Trees:            trees,
	}, nil
}

// decodeTreeDelta converts one tree's wire-level update_entries into
// batchapply.TreeDelta, canonically re-serializing each entry's
// leafFieldCount-wide field elements into a single leaf value (spec §3's
// composite leaf serialization).
func decodeTreeDelta(prevRootHex, nextRootHex string, entries []gateway.DeltaEntry, leafFieldCount int) (batchapply.TreeDelta, error) {
	prevRoot, err := decodeHash(prevRootHex)
	if err != nil {
		return batchapply.TreeDelta{}, fmt.Errorf("prev_batch_root: %w", err)
	}
	nextRoot, err := decodeHash(nextRootHex)
	if err != nil {
		return batchapply.TreeDelta{}, fmt.Errorf("next_batch_root: %w", err)
	}

	updates := make([]merkle.Update, len(entries))
	for i, e := range entries {
		if len(e.LeafFields) != leafFieldCount {
			return batchapply.TreeDelta{}, fmt.Errorf("update_entries[%d]: %w: got %d fields, want %d",
				i, merkle.ErrLeafFieldCount, len(e.LeafFields), leafFieldCount)
		}
		fields := make([]merkle.FieldElement, len(e.LeafFields))
		for j, s := range e.LeafFields {
			fe, err := merkle.DecodeFieldElement(s)
			if err != nil {
				return batchapply.TreeDelta{}, fmt.Errorf("update_entries[%d].leaf_fields[%d]: %w", i, j, err)
			}
			fields[j] = fe
		}
		updates[i] = merkle.Update{Index: e.Index, Value: merkle.EncodeCompositeLeaf(fields)}
	}

	return batchapply.TreeDelta{PrevRoot: prevRoot, NextRoot: nextRoot, Updates: updates}, nil
}

func decodeHash(s string) (crypto.Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.BytesToHash(b), nil
}

// orderedRoots returns computed's root for every tree profile declares, in
// signed-message order (primary first, then auxiliary trees in profile
// order) -- the same order SignAttestation and VerifyAttestation require.
func orderedRoots(computed map[string]crypto.Hash, profile config.Profile) []crypto.Hash {
	roots := make([]crypto.Hash, 0, len(profile.Trees()))
	for _, spec := range profile.Trees() {
		roots = append(roots, computed[spec.Name])
	}
	return roots
}
