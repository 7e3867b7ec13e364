package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"codeberg.org/gruf/go-mutexes"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"patreonix/core/events"
	"patreonix/core/state"
	"patreonix/crypto"
	nativecommon "patreonix/native/common"
	"patreonix/native/creator"
	"patreonix/observability"
	"patreonix/storage"
	"patreonix/storage/trie"
)

// ErrQuotaExceeded is returned when an identity used up its write quota.
var ErrQuotaExceeded = errors.New("core: write quota exceeded")

// Options configures a Node.
type Options struct {
	ProgramID crypto.Address
	Pauses    nativecommon.PauseView
	Quota     nativecommon.Quota
	Now       func() int64
	Logger    *slog.Logger
}

// Node hosts the registry: it serializes operations per record, runs each
// operation inside one state transaction and publishes events only after the
// transaction committed.
type Node struct {
	db        storage.Database
	state     *state.Manager
	programID crypto.Address
	locks     mutexes.MutexMap
	stream    *EventStream
	sinks     events.Fanout
	pauses    nativecommon.PauseView
	quota     *nativecommon.Ledger[crypto.Address]
	nowFn     func() int64
	logger    *slog.Logger
	metrics   *observability.RegistryMetrics
	tracer    trace.Tracer
}

// NewNode wires a node over db.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, errors.New("core: nil database")
	}
	if opts.ProgramID.IsZero() {
		return nil, errors.New("core: program id required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = func() int64 { return time.Now().Unix() }
	}
	n := &Node{
		db:        db,
		state:     state.NewManager(db),
		programID: opts.ProgramID,
		stream:    NewEventStream(),
		pauses:    opts.Pauses,
		quota:     nativecommon.NewLedger[crypto.Address](opts.Quota),
		nowFn:     nowFn,
		logger:    logger.With(slog.String("component", "registry")),
		metrics:   observability.Registry(),
		tracer:    otel.Tracer("patreonix/core"),
	}
	n.sinks.Add(n.stream)
	return n, nil
}

// ProgramID returns the owner id of registry accounts.
func (n *Node) ProgramID() crypto.Address { return n.programID }

// Events exposes the committed event stream.
func (n *Node) Events() *EventStream { return n.stream }

// AddEmitter registers an additional sink for committed events.
func (n *Node) AddEmitter(e events.Emitter) { n.sinks.Add(e) }

// Close releases the database.
func (n *Node) Close() error { return n.db.Close() }

func (n *Node) newEngine(tx *state.Tx, emitter events.Emitter) *creator.Engine {
	eng := creator.NewEngine(n.programID)
	eng.SetState(tx)
	eng.SetTransferer(tx)
	eng.SetEmitter(emitter)
	eng.SetNowFunc(n.nowFn)
	eng.SetPauses(n.pauses)
	return eng
}

type lockMode int

const (
	readLock lockMode = iota
	writeLock
)

func accountLock(addr crypto.Address) string { return "acct:" + addr.Hex() }
func balanceLock(addr crypto.Address) string { return "bal:" + addr.Hex() }

// acquire takes the named locks in sorted order so that operations touching
// overlapping record sets cannot deadlock.
func (n *Node) acquire(keys []string, mode lockMode) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	unlocks := make([]func(), 0, len(sorted))
	var prev string
	for i, k := range sorted {
		if i > 0 && k == prev {
			continue
		}
		prev = k
		if mode == writeLock {
			unlocks = append(unlocks, n.locks.Lock(k))
		} else {
			unlocks = append(unlocks, n.locks.RLock(k))
		}
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// execute runs fn as one atomic unit under the given record locks. Writes
// commit only when fn succeeds; events are published after the commit.
func (n *Node) execute(ctx context.Context, op string, keys []string, mode lockMode, fn func(eng *creator.Engine, tx *state.Tx) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := n.tracer.Start(ctx, "registry."+op, trace.WithAttributes(
		attribute.String("registry.operation", op),
		attribute.Int("registry.locks", len(keys)),
	))
	defer span.End()

	start := time.Now()
	unlock := n.acquire(keys, mode)
	defer unlock()
	n.metrics.ObserveLockWait(time.Since(start))

	tx := n.state.Begin()
	buf := &events.Buffer{}
	err := fn(n.newEngine(tx, buf), tx)
	if err == nil && mode == writeLock {
		err = tx.Commit()
	} else {
		tx.Discard()
	}

	result := "ok"
	if err != nil {
		result = "internal"
		if regErr, ok := creator.AsError(err); ok {
			result = regErr.Name
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		n.logger.Debug("registry operation rejected",
			slog.String("operation", op),
			slog.String("reason", result),
			slog.Any("error", err))
	}
	n.metrics.ObserveOperation(op, result, time.Since(start))
	if err != nil {
		return err
	}
	for _, evt := range buf.Events() {
		n.metrics.RecordEvent(evt.EventType())
		n.sinks.Emit(evt)
	}
	return nil
}

// chargeQuota counts one mutating request (and optional spend) against the
// identity's quota for the current epoch.
func (n *Node) chargeQuota(who crypto.Address, spend uint64) error {
	if err := n.quota.Charge(who, n.nowFn(), 1, spend); err != nil {
		observability.ModuleMetrics().RecordThrottle(creator.ModuleName, "quota_exceeded")
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return nil
}

// ErrPausesFixed is returned when the node's pause view cannot be changed.
var ErrPausesFixed = errors.New("core: pause set is not adjustable")

// SetPaused pauses or resumes a module at runtime.
func (n *Node) SetPaused(module string, paused bool) error {
	ctl, ok := n.pauses.(nativecommon.PauseController)
	if !ok {
		return ErrPausesFixed
	}
	ctl.SetPaused(module, paused)
	n.logger.Warn("module pause changed", slog.String("module", module), slog.Bool("paused", paused))
	return nil
}

// PausedModules lists the currently paused modules.
func (n *Node) PausedModules() []string {
	if ctl, ok := n.pauses.(nativecommon.PauseController); ok {
		return ctl.Paused()
	}
	return []string{}
}

// StateRoot returns the Merkle root over all committed state.
func (n *Node) StateRoot(ctx context.Context) (common.Hash, error) {
	_, span := n.tracer.Start(ctx, "registry.state_root")
	defer span.End()
	return trie.StateRoot(n.db, state.RootPrefixes()...)
}

func nonceLock(signer crypto.Address) string { return "nonce:" + signer.Hex() }

// ConsumeNonce durably marks a signed request nonce as spent for signer.
// It returns state.ErrNonceUsed when the nonce was consumed before.
func (n *Node) ConsumeNonce(ctx context.Context, signer crypto.Address, nonce string, issuedAt int64) error {
	return n.execute(ctx, "consume_nonce", []string{nonceLock(signer)}, writeLock, func(_ *creator.Engine, tx *state.Tx) error {
		return tx.ConsumeNonce(signer, nonce, issuedAt)
	})
}

// PruneNonces drops spent nonces issued before cutoff.
func (n *Node) PruneNonces(cutoff int64) (int, error) {
	removed, err := n.state.PruneNonces(cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		n.logger.Debug("pruned spent nonces", slog.Int("removed", removed))
	}
	return removed, nil
}
