package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"patreonix/core/genesis"
	"patreonix/core/state"
	"patreonix/crypto"
	nativecommon "patreonix/native/common"
	"patreonix/native/creator"
	"patreonix/storage"
)

var testProgramID = crypto.Address{0x70, 0x61, 0x74, 0x72, 0x65, 0x6f, 0x6e, 0x69, 0x78}

func newTestNode(t *testing.T, opts Options) *Node {
	t.Helper()
	opts.ProgramID = testProgramID
	if opts.Now == nil {
		opts.Now = func() int64 { return 1_700_000_000 }
	}
	n, err := NewNode(storage.NewMemDB(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func newIdentity(t *testing.T) crypto.Address {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key.PubKey().Address()
}

func TestNewNodeRequiresProgramID(t *testing.T) {
	_, err := NewNode(storage.NewMemDB(), Options{})
	require.Error(t, err)
}

func TestConcurrentCreateContentAssignsEachIndexOnce(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	alice := newIdentity(t)
	info, err := n.RegisterCreator(ctx, alice, "Alice", nil, nil, nil)
	require.NoError(t, err)

	const racers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := n.CreateContent(ctx, alice, info.Address, creator.ContentInput{Title: "Hi", Content: "world", ContentIndex: 0})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, creator.ErrInvalidContentIndex):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
	require.Equal(t, racers-1, rejected)

	got, err := n.FetchCreatorPublic(ctx, info.Address)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.TotalContent)
}

func TestConcurrentDistinctCreatorsProceed(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	_, err := n.Initialize(ctx, newIdentity(t))
	require.NoError(t, err)

	const creators = 8
	var wg sync.WaitGroup
	errs := make(chan error, creators)
	for i := 0; i < creators; i++ {
		who := newIdentity(t)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			info, err := n.RegisterCreator(ctx, who, fmt.Sprintf("creator-%d", i), nil, nil, nil)
			if err != nil {
				errs <- err
				return
			}
			for idx := uint64(0); idx < 3; idx++ {
				if _, err := n.CreateContent(ctx, who, info.Address, creator.ContentInput{Title: "t", Content: "c", ContentIndex: idx}); err != nil {
					errs <- err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	ps, err := n.ProgramState(ctx)
	require.NoError(t, err)
	require.EqualValues(t, creators, ps.TotalCreators)
	require.EqualValues(t, creators*3, ps.TotalContent)
}

func TestEventsPublishedOnlyOnCommit(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, stop, backlog := n.Events().Subscribe(ctx, "")
	defer stop()
	require.Empty(t, backlog)

	alice, bob := newIdentity(t), newIdentity(t)
	info, err := n.RegisterCreator(ctx, alice, "Alice", nil, nil, nil)
	require.NoError(t, err)

	select {
	case evt := <-updates:
		require.Equal(t, creator.EventTypeCreatorRegistered, evt.Type)
		require.Equal(t, "1", evt.Cursor)
		require.Equal(t, info.Address.String(), evt.Attributes["creator"])
	case <-time.After(time.Second):
		t.Fatal("expected registration event")
	}

	_, err = n.UpdateCreator(ctx, bob, info.Address, creator.CreatorUpdate{})
	require.ErrorIs(t, err, creator.ErrUnauthorizedAccess)
	select {
	case evt := <-updates:
		t.Fatalf("unexpected event after rejected update: %+v", evt)
	default:
	}

	_, _, backlog = n.Events().Subscribe(ctx, "0")
	require.Len(t, backlog, 1)
}

func TestRejectedOperationLeavesStateUntouched(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	alice := newIdentity(t)
	info, err := n.RegisterCreator(ctx, alice, "Alice", nil, nil, nil)
	require.NoError(t, err)
	before, err := n.StateRoot(ctx)
	require.NoError(t, err)

	_, err = n.CreateContent(ctx, alice, info.Address, creator.ContentInput{Title: "Hi", Content: "world", ContentIndex: 3})
	require.ErrorIs(t, err, creator.ErrInvalidContentIndex)
	after, err := n.StateRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	_, err = n.CreateContent(ctx, alice, info.Address, creator.ContentInput{Title: "Hi", Content: "world", ContentIndex: 0})
	require.NoError(t, err)
	changed, err := n.StateRoot(ctx)
	require.NoError(t, err)
	require.NotEqual(t, before, changed)
}

func TestConsumeNonceOutsideStateRoot(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	alice := newIdentity(t)
	before, err := n.StateRoot(ctx)
	require.NoError(t, err)

	require.NoError(t, n.ConsumeNonce(ctx, alice, "n-1", 1_700_000_000))
	require.ErrorIs(t, n.ConsumeNonce(ctx, alice, "n-1", 1_700_000_000), state.ErrNonceUsed)
	after, err := n.StateRoot(ctx)
	require.NoError(t, err)
	require.Equal(t, before, after)

	removed, err := n.PruneNonces(1_700_000_001)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.NoError(t, n.ConsumeNonce(ctx, alice, "n-1", 1_700_000_002))
}

func TestQuotaLimitsWrites(t *testing.T) {
	n := newTestNode(t, Options{Quota: nativecommon.Quota{MaxRequestsPerEpoch: 2, EpochSeconds: 60}})
	ctx := context.Background()
	alice := newIdentity(t)
	info, err := n.RegisterCreator(ctx, alice, "Alice", nil, nil, nil)
	require.NoError(t, err)
	_, err = n.IncrementSupporters(ctx, alice, info.Address)
	require.NoError(t, err)
	_, err = n.IncrementSupporters(ctx, alice, info.Address)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// Reads are not charged.
	_, err = n.FetchCreator(ctx, alice, info.Address)
	require.NoError(t, err)
}

func TestPausedNodeRejectsWrites(t *testing.T) {
	n := newTestNode(t, Options{Pauses: nativecommon.NewSwitch(creator.ModuleName)})
	ctx := context.Background()
	_, err := n.RegisterCreator(ctx, newIdentity(t), "Alice", nil, nil, nil)
	require.ErrorIs(t, err, creator.ErrModulePaused)
	require.Equal(t, []string{creator.ModuleName}, n.PausedModules())

	require.NoError(t, n.SetPaused(creator.ModuleName, false))
	_, err = n.RegisterCreator(ctx, newIdentity(t), "Alice", nil, nil, nil)
	require.NoError(t, err)
	require.Empty(t, n.PausedModules())
}

func TestFixedPauseViewCannotChange(t *testing.T) {
	n := newTestNode(t, Options{})
	require.ErrorIs(t, n.SetPaused(creator.ModuleName, true), ErrPausesFixed)
	require.Empty(t, n.PausedModules())
}

func TestSubscribeMovesFunds(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	alice, bob := newIdentity(t), newIdentity(t)
	info, err := n.RegisterCreator(ctx, alice, "Alice", nil, nil, nil)
	require.NoError(t, err)
	_, err = n.Mint(ctx, bob, uint256.NewInt(100))
	require.NoError(t, err)

	got, err := n.Subscribe(ctx, bob, info.Address, 60)
	require.NoError(t, err)
	require.EqualValues(t, 1, got.TotalSupporters)

	aliceBal, err := n.Balance(ctx, alice)
	require.NoError(t, err)
	bobBal, err := n.Balance(ctx, bob)
	require.NoError(t, err)
	require.EqualValues(t, 60, aliceBal.Uint64())
	require.EqualValues(t, 40, bobBal.Uint64())

	_, err = n.Subscribe(ctx, bob, info.Address, 60)
	require.ErrorIs(t, err, creator.ErrTransferFailed)
	bobBal, err = n.Balance(ctx, bob)
	require.NoError(t, err)
	require.EqualValues(t, 40, bobBal.Uint64())
}

func TestApplyGenesisOnce(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	authority, holder := newIdentity(t), newIdentity(t)
	doc := fmt.Sprintf("programId: %s\nauthority: %s\nbalances:\n  - address: %s\n    amount: \"500\"\n", testProgramID, authority, holder)
	spec, err := genesis.ParseSpec([]byte(doc))
	require.NoError(t, err)

	applied, err := n.ApplyGenesis(ctx, spec)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = n.ApplyGenesis(ctx, spec)
	require.NoError(t, err)
	require.False(t, applied)

	bal, err := n.Balance(ctx, holder)
	require.NoError(t, err)
	require.EqualValues(t, 500, bal.Uint64())
	ps, err := n.ProgramState(ctx)
	require.NoError(t, err)
	require.Equal(t, authority, ps.Authority)

	other, err := genesis.ParseSpec([]byte(fmt.Sprintf("programId: %s\n", testProgramID)))
	require.NoError(t, err)
	_, err = n.ApplyGenesis(ctx, other)
	require.ErrorIs(t, err, ErrGenesisMismatch)
}

func TestSnapshotListsRecords(t *testing.T) {
	n := newTestNode(t, Options{})
	ctx := context.Background()
	alice := newIdentity(t)
	_, err := n.Initialize(ctx, alice)
	require.NoError(t, err)
	info, err := n.RegisterCreator(ctx, alice, "Alice", nil, nil, nil)
	require.NoError(t, err)
	content, err := n.CreateContent(ctx, alice, info.Address, creator.ContentInput{Title: "Hi", Content: "world", ContentType: creator.ContentTypeImage})
	require.NoError(t, err)
	_, err = n.InsertComment(ctx, newIdentity(t), content.Address, "first")
	require.NoError(t, err)

	snap, err := n.Snapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.ProgramState)
	require.Len(t, snap.Creators, 1)
	require.Len(t, snap.Contents, 1)
	require.Equal(t, "Hi", snap.Contents[0].Title)
	require.Len(t, snap.Contents[0].Comments, 1)
}
