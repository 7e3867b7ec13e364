package core

import (
	"context"
	"log/slog"

	"github.com/holiman/uint256"

	"patreonix/core/state"
	"patreonix/crypto"
	"patreonix/native/creator"
	"patreonix/observability/logging"
)

func (n *Node) stateLock() (string, error) {
	addr, _, err := creator.StateAddress(n.programID)
	if err != nil {
		return "", err
	}
	return accountLock(addr), nil
}

// Initialize creates the program state singleton.
func (n *Node) Initialize(ctx context.Context, signer crypto.Address) (*creator.ProgramState, error) {
	if err := n.chargeQuota(signer, 0); err != nil {
		return nil, err
	}
	lock, err := n.stateLock()
	if err != nil {
		return nil, err
	}
	var out *creator.ProgramState
	err = n.execute(ctx, "initialize", []string{lock}, writeLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.Initialize(signer)
		return err
	})
	return out, err
}

// ProgramState returns the singleton, or nil if it was never initialized.
func (n *Node) ProgramState(ctx context.Context) (*creator.ProgramState, error) {
	lock, err := n.stateLock()
	if err != nil {
		return nil, err
	}
	var out *creator.ProgramState
	err = n.execute(ctx, "program_state", []string{lock}, readLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.ProgramState()
		return err
	})
	return out, err
}

// RegisterCreator registers signer as a creator.
func (n *Node) RegisterCreator(ctx context.Context, signer crypto.Address, name string, email, bio, avatar *string) (*creator.CreatorInfo, error) {
	if err := n.chargeQuota(signer, 0); err != nil {
		return nil, err
	}
	addr, _, err := creator.CreatorAddress(n.programID, signer)
	if err != nil {
		return nil, err
	}
	lock, err := n.stateLock()
	if err != nil {
		return nil, err
	}
	var out *creator.CreatorInfo
	err = n.execute(ctx, "register_creator", []string{accountLock(addr), lock}, writeLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.RegisterCreator(signer, name, email, bio, avatar)
		return err
	})
	if err == nil && email != nil {
		n.logger.Info("creator registered with contact email",
			slog.String("creator", out.Address.String()),
			slog.String("email", logging.MaskEmail(*email)))
	}
	return out, err
}

// UpdateCreator patches the supplied profile fields.
func (n *Node) UpdateCreator(ctx context.Context, signer, creatorAddr crypto.Address, update creator.CreatorUpdate) (*creator.CreatorInfo, error) {
	return n.creatorWrite(ctx, "update_creator", signer, creatorAddr, func(eng *creator.Engine) (*creator.CreatorInfo, error) {
		return eng.UpdateCreator(signer, creatorAddr, update)
	})
}

// DeactivateCreator soft-deletes a creator.
func (n *Node) DeactivateCreator(ctx context.Context, signer, creatorAddr crypto.Address) (*creator.CreatorInfo, error) {
	return n.creatorWrite(ctx, "deactivate_creator", signer, creatorAddr, func(eng *creator.Engine) (*creator.CreatorInfo, error) {
		return eng.DeactivateCreator(signer, creatorAddr)
	})
}

// ReactivateCreator reverses a deactivation.
func (n *Node) ReactivateCreator(ctx context.Context, signer, creatorAddr crypto.Address) (*creator.CreatorInfo, error) {
	return n.creatorWrite(ctx, "reactivate_creator", signer, creatorAddr, func(eng *creator.Engine) (*creator.CreatorInfo, error) {
		return eng.ReactivateCreator(signer, creatorAddr)
	})
}

// IncrementSupporters adds one supporter.
func (n *Node) IncrementSupporters(ctx context.Context, signer, creatorAddr crypto.Address) (*creator.CreatorInfo, error) {
	return n.creatorWrite(ctx, "increment_supporters", signer, creatorAddr, func(eng *creator.Engine) (*creator.CreatorInfo, error) {
		return eng.IncrementSupporters(signer, creatorAddr)
	})
}

func (n *Node) creatorWrite(ctx context.Context, op string, signer, creatorAddr crypto.Address, fn func(eng *creator.Engine) (*creator.CreatorInfo, error)) (*creator.CreatorInfo, error) {
	if err := n.chargeQuota(signer, 0); err != nil {
		return nil, err
	}
	var out *creator.CreatorInfo
	err := n.execute(ctx, op, []string{accountLock(creatorAddr)}, writeLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = fn(eng)
		return err
	})
	return out, err
}

// Subscribe pays amount to the creator and counts a supporter. Both balances
// and the creator record are locked for the duration.
func (n *Node) Subscribe(ctx context.Context, subscriber, creatorAddr crypto.Address, amount uint64) (*creator.CreatorInfo, error) {
	if err := n.chargeQuota(subscriber, amount); err != nil {
		return nil, err
	}
	// The authority of a creator record never changes, so reading it ahead of
	// locking is safe and lets the payee balance join the lock set.
	profile, err := n.FetchCreatorPublic(ctx, creatorAddr)
	if err != nil {
		return nil, err
	}
	keys := []string{accountLock(creatorAddr), balanceLock(subscriber), balanceLock(profile.Authority)}
	var out *creator.CreatorInfo
	err = n.execute(ctx, "subscribe", keys, writeLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.Subscribe(subscriber, creatorAddr, amount)
		return err
	})
	return out, err
}

// FetchCreator returns the private profile to its authority.
func (n *Node) FetchCreator(ctx context.Context, signer, creatorAddr crypto.Address) (*creator.CreatorInfo, error) {
	var out *creator.CreatorInfo
	err := n.execute(ctx, "fetch_creator", []string{accountLock(creatorAddr)}, readLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.FetchCreator(signer, creatorAddr)
		return err
	})
	return out, err
}

// FetchCreatorPublic returns a profile without authorization.
func (n *Node) FetchCreatorPublic(ctx context.Context, creatorAddr crypto.Address) (*creator.CreatorInfo, error) {
	var out *creator.CreatorInfo
	err := n.execute(ctx, "fetch_creator_public", []string{accountLock(creatorAddr)}, readLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.FetchCreatorPublic(creatorAddr)
		return err
	})
	return out, err
}

// CreateContent publishes the next content record of a creator. Concurrent
// calls for the same creator are serialized on the creator lock, so only one
// of two racing calls with the same index can succeed.
func (n *Node) CreateContent(ctx context.Context, signer, creatorAddr crypto.Address, in creator.ContentInput) (*creator.ContentDetails, error) {
	if err := n.chargeQuota(signer, 0); err != nil {
		return nil, err
	}
	lock, err := n.stateLock()
	if err != nil {
		return nil, err
	}
	var out *creator.ContentDetails
	err = n.execute(ctx, "create_content", []string{accountLock(creatorAddr), lock}, writeLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.CreateContent(signer, creatorAddr, in)
		return err
	})
	return out, err
}

// FetchContent resolves a content record by creator and index.
func (n *Node) FetchContent(ctx context.Context, loc creator.ContentLocator) (*creator.ContentDetails, error) {
	addr, _, err := creator.ContentAddress(n.programID, loc.Creator, loc.Index)
	if err != nil {
		return nil, err
	}
	var out *creator.ContentDetails
	err = n.execute(ctx, "fetch_content_by_index", []string{accountLock(addr)}, readLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.FetchContentByIndex(loc)
		return err
	})
	return out, err
}

// ListContent returns one window of a creator's content.
func (n *Node) ListContent(ctx context.Context, creatorAddr crypto.Address, offset uint64, limit uint32, filter *creator.ContentType) (*creator.ContentPage, error) {
	var out *creator.ContentPage
	err := n.execute(ctx, "list_content", []string{accountLock(creatorAddr)}, readLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.ListContent(creatorAddr, offset, limit, filter)
		return err
	})
	return out, err
}

// InsertComment appends a comment to a content record.
func (n *Node) InsertComment(ctx context.Context, signer, contentAddr crypto.Address, text string) (*creator.ContentDetails, error) {
	if err := n.chargeQuota(signer, 0); err != nil {
		return nil, err
	}
	var out *creator.ContentDetails
	err := n.execute(ctx, "insert_comment", []string{accountLock(contentAddr)}, writeLock, func(eng *creator.Engine, _ *state.Tx) error {
		var err error
		out, err = eng.InsertComment(signer, contentAddr, text)
		return err
	})
	return out, err
}

// Balance returns the token balance of an identity.
func (n *Node) Balance(ctx context.Context, addr crypto.Address) (*uint256.Int, error) {
	var out *uint256.Int
	err := n.execute(ctx, "balance", []string{balanceLock(addr)}, readLock, func(_ *creator.Engine, tx *state.Tx) error {
		var err error
		out, err = tx.Balance(addr)
		return err
	})
	return out, err
}

// Mint credits tokens to an identity. Callers are expected to have checked
// operator credentials.
func (n *Node) Mint(ctx context.Context, to crypto.Address, amount *uint256.Int) (*uint256.Int, error) {
	var out *uint256.Int
	err := n.execute(ctx, "mint", []string{balanceLock(to)}, writeLock, func(_ *creator.Engine, tx *state.Tx) error {
		if err := tx.Mint(to, amount); err != nil {
			return err
		}
		var err error
		out, err = tx.Balance(to)
		return err
	})
	return out, err
}
