package core

import (
	"context"
	"fmt"

	"patreonix/core/state"
	"patreonix/crypto"
	"patreonix/native/creator"
)

// Snapshot is a point-in-time listing of every committed registry record.
type Snapshot struct {
	ProgramState *creator.ProgramState
	Creators     []*creator.CreatorInfo
	Contents     []*creator.ContentDetails
}

// Snapshot walks all registry accounts in address order. It does not take
// record locks; records committed while the walk runs may or may not appear.
func (n *Node) Snapshot(ctx context.Context) (*Snapshot, error) {
	_, span := n.tracer.Start(ctx, "registry.snapshot")
	defer span.End()

	snap := &Snapshot{}
	err := n.state.ForEachAccount(func(addr crypto.Address, acc *state.Account) error {
		if acc.Owner != n.programID {
			return nil
		}
		switch creator.RecordKind(acc.Data) {
		case "creator":
			info, err := creator.DecodeCreatorInfo(addr, acc.Data)
			if err != nil {
				return fmt.Errorf("core: snapshot creator %s: %w", addr, err)
			}
			snap.Creators = append(snap.Creators, info)
		case "content":
			details, err := creator.DecodeContentDetails(addr, acc.Data)
			if err != nil {
				return fmt.Errorf("core: snapshot content %s: %w", addr, err)
			}
			snap.Contents = append(snap.Contents, details)
		case "state":
			ps := new(creator.ProgramState)
			if err := ps.UnmarshalBinary(acc.Data); err != nil {
				return fmt.Errorf("core: snapshot program state: %w", err)
			}
			snap.ProgramState = ps
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}
