package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"patreonix/core/genesis"
	"patreonix/core/state"
	"patreonix/native/creator"
)

const genesisMetaKey = "genesis"

var ErrGenesisMismatch = errors.New("core: data directory was initialised with a different genesis")

// ApplyGenesis seeds balances and the program state singleton exactly once.
// It reports whether anything was written. Re-applying the same genesis is a
// no-op; a different one is rejected.
func (n *Node) ApplyGenesis(ctx context.Context, spec *genesis.Spec) (bool, error) {
	if spec == nil {
		return false, nil
	}
	if spec.ProgramIDValue() != n.programID {
		return false, fmt.Errorf("core: genesis program id %s does not match node program id %s", spec.ProgramIDValue(), n.programID)
	}
	digest := spec.Digest()
	applied := false
	err := n.execute(ctx, "genesis", []string{"meta:" + genesisMetaKey}, writeLock, func(eng *creator.Engine, tx *state.Tx) error {
		existing, ok, err := tx.Meta(genesisMetaKey)
		if err != nil {
			return err
		}
		if ok {
			if !bytes.Equal(existing, digest) {
				return ErrGenesisMismatch
			}
			return nil
		}
		for _, alloc := range spec.Allocations() {
			if err := tx.Mint(alloc.Address, alloc.Amount); err != nil {
				return fmt.Errorf("core: genesis balance %s: %w", alloc.Address, err)
			}
		}
		if authority, ok := spec.AuthorityValue(); ok {
			if _, err := eng.Initialize(authority); err != nil {
				return fmt.Errorf("core: genesis initialize: %w", err)
			}
		}
		applied = true
		return tx.SetMeta(genesisMetaKey, digest)
	})
	if err != nil {
		return false, err
	}
	if applied {
		n.logger.Info("genesis applied",
			slog.Int("balances", len(spec.Allocations())),
			slog.String("programId", n.programID.String()))
	}
	return applied, nil
}
