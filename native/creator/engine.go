package creator

import (
	"errors"
	"fmt"
	"time"

	"patreonix/core/events"
	"patreonix/core/state"
	"patreonix/core/types"
	"patreonix/crypto"
	"patreonix/native/common"
)

var errNilState = errors.New("creator engine: state not configured")

type engineState interface {
	CreateAccount(addr, owner crypto.Address, space int) error
	AccountData(addr, owner crypto.Address) ([]byte, bool, error)
	WriteAccountData(addr, owner crypto.Address, data []byte) error
}

// Transferer moves tokens between identities. It either succeeds or leaves
// both balances untouched.
type Transferer interface {
	Transfer(from, to, authorizer crypto.Address, amount uint64) error
}

// Engine implements the registry operations on top of account slots owned by
// the program id. It holds no record state of its own; every call reads and
// writes through the configured state.
type Engine struct {
	state     engineState
	bank      Transferer
	emitter   events.Emitter
	pauses    common.PauseView
	nowFn     func() int64
	programID crypto.Address
}

// NewEngine constructs a registry engine with default dependencies.
func NewEngine(programID crypto.Address) *Engine {
	return &Engine{
		programID: programID,
		emitter:   events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTransferer configures the token ledger used by Subscribe.
func (e *Engine) SetTransferer(bank Transferer) { e.bank = bank }

// SetPauses configures the pause view consulted before mutations.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// ProgramID returns the owner id of every registry account.
func (e *Engine) ProgramID() crypto.Address { return e.programID }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

// --- record access ---

func (e *Engine) readAccount(addr crypto.Address) ([]byte, bool, error) {
	data, ok, err := e.state.AccountData(addr, e.programID)
	if errors.Is(err, state.ErrWrongOwner) {
		return nil, false, ErrInvalidAddress
	}
	if err != nil {
		return nil, false, fmt.Errorf("creator engine: load %s: %w", addr, err)
	}
	return data, ok, nil
}

func (e *Engine) writeRecord(addr crypto.Address, rec interface{ MarshalBinary() ([]byte, error) }) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	if err := e.state.WriteAccountData(addr, e.programID, data); err != nil {
		return fmt.Errorf("creator engine: store %s: %w", addr, err)
	}
	return nil
}

func (e *Engine) allocate(addr crypto.Address, space int) error {
	err := e.state.CreateAccount(addr, e.programID, space)
	if errors.Is(err, state.ErrAccountInUse) {
		return ErrAccountInUse
	}
	if err != nil {
		return fmt.Errorf("creator engine: allocate %s: %w", addr, err)
	}
	return nil
}

// loadCreator reads the creator record at addr and checks that addr is the
// derived address of the stored authority.
func (e *Engine) loadCreator(addr crypto.Address) (*Creator, error) {
	data, ok, err := e.readAccount(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCreator
	}
	creator := new(Creator)
	if err := creator.UnmarshalBinary(data); err != nil {
		if errors.Is(err, errDiscriminatorMismatch) {
			return nil, ErrInvalidCreator
		}
		return nil, fmt.Errorf("creator engine: decode creator %s: %w", addr, err)
	}
	expected, _, err := CreatorAddress(e.programID, creator.Authority)
	if err != nil {
		return nil, err
	}
	if expected != addr {
		return nil, ErrInvalidAddress
	}
	return creator, nil
}

// loadContent reads the content record at addr and checks it re-derives
// from its creator, index and stored bump.
func (e *Engine) loadContent(addr crypto.Address) (*Content, error) {
	data, ok, err := e.readAccount(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrContentNotFound
	}
	content := new(Content)
	if err := content.UnmarshalBinary(data); err != nil {
		if errors.Is(err, errDiscriminatorMismatch) {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("creator engine: decode content %s: %w", addr, err)
	}
	if !crypto.VerifyProgramAddress(contentSeeds(content.Creator, content.ContentIndex), content.Bump, e.programID, addr) {
		return nil, ErrBumpNotFound
	}
	return content, nil
}

// loadProgramState returns the singleton, or nil when it was never created.
func (e *Engine) loadProgramState() (*ProgramState, crypto.Address, error) {
	addr, _, err := StateAddress(e.programID)
	if err != nil {
		return nil, addr, err
	}
	data, ok, err := e.readAccount(addr)
	if err != nil || !ok {
		return nil, addr, err
	}
	ps := new(ProgramState)
	if err := ps.UnmarshalBinary(data); err != nil {
		return nil, addr, fmt.Errorf("creator engine: decode program state: %w", err)
	}
	return ps, addr, nil
}

// --- program state ---

// Initialize creates the ProgramState singleton. A second call fails because
// the address is already occupied.
func (e *Engine) Initialize(signer crypto.Address) (*ProgramState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	addr, bump, err := StateAddress(e.programID)
	if err != nil {
		return nil, err
	}
	if err := e.allocate(addr, ProgramStateSpace); err != nil {
		return nil, err
	}
	ps := &ProgramState{Authority: signer, Bump: bump}
	if err := e.writeRecord(addr, ps); err != nil {
		return nil, err
	}
	e.emit(InitializedEvent(addr, signer))
	return ps, nil
}

// ProgramState returns the singleton or nil if Initialize never ran.
func (e *Engine) ProgramState() (*ProgramState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ps, _, err := e.loadProgramState()
	return ps, err
}

// nextProgramState loads the singleton and applies fn to a copy. It returns
// nil when the singleton was never created.
func (e *Engine) nextProgramState(fn func(ps *ProgramState) error) (*ProgramState, crypto.Address, error) {
	ps, addr, err := e.loadProgramState()
	if err != nil || ps == nil {
		return nil, addr, err
	}
	if err := fn(ps); err != nil {
		return nil, addr, err
	}
	return ps, addr, nil
}

// --- creators ---

// RegisterCreator creates the creator record of signer.
func (e *Engine) RegisterCreator(signer crypto.Address, name string, email, bio, avatar *string) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if err := validateProfile(&name, email, bio, avatar); err != nil {
		return nil, err
	}
	addr, _, err := CreatorAddress(e.programID, signer)
	if err != nil {
		return nil, err
	}
	creator := &Creator{
		Authority:    signer,
		Name:         name,
		Email:        cloneString(email),
		Bio:          cloneString(bio),
		Avatar:       cloneString(avatar),
		RegisteredAt: e.now(),
		IsActive:     true,
	}
	ps, psAddr, err := e.nextProgramState(func(ps *ProgramState) error {
		next, err := checkedIncrement(ps.TotalCreators)
		ps.TotalCreators = next
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := e.allocate(addr, CreatorSpace); err != nil {
		return nil, err
	}
	if err := e.writeRecord(addr, creator); err != nil {
		return nil, err
	}
	if ps != nil {
		if err := e.writeRecord(psAddr, ps); err != nil {
			return nil, err
		}
	}
	e.emit(CreatorRegisteredEvent(addr, creator))
	return creator.info(addr), nil
}

// UpdateCreator applies the supplied deltas. All fields are validated before
// any is applied.
func (e *Engine) UpdateCreator(signer, creatorAddr crypto.Address, update CreatorUpdate) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	if err := authorize(signer, creator); err != nil {
		return nil, err
	}
	if err := validateProfile(update.Name, update.Email, update.Bio, update.Avatar); err != nil {
		return nil, err
	}
	var fields []string
	if update.Name != nil {
		creator.Name = *update.Name
		fields = append(fields, "name")
	}
	if update.Email != nil {
		creator.Email = cloneString(update.Email)
		fields = append(fields, "email")
	}
	if update.Bio != nil {
		creator.Bio = cloneString(update.Bio)
		fields = append(fields, "bio")
	}
	if update.Avatar != nil {
		creator.Avatar = cloneString(update.Avatar)
		fields = append(fields, "avatar")
	}
	if err := e.writeRecord(creatorAddr, creator); err != nil {
		return nil, err
	}
	e.emit(CreatorUpdatedEvent(creatorAddr, creator, fields))
	return creator.info(creatorAddr), nil
}

// DeactivateCreator soft-deletes the creator record.
func (e *Engine) DeactivateCreator(signer, creatorAddr crypto.Address) (*CreatorInfo, error) {
	return e.setActive(signer, creatorAddr, false)
}

// ReactivateCreator reverses DeactivateCreator.
func (e *Engine) ReactivateCreator(signer, creatorAddr crypto.Address) (*CreatorInfo, error) {
	return e.setActive(signer, creatorAddr, true)
}

func (e *Engine) setActive(signer, creatorAddr crypto.Address, active bool) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	if err := authorize(signer, creator); err != nil {
		return nil, err
	}
	creator.IsActive = active
	if err := e.writeRecord(creatorAddr, creator); err != nil {
		return nil, err
	}
	e.emit(CreatorStatusEvent(creatorAddr, active))
	return creator.info(creatorAddr), nil
}

// IncrementSupporters adds one to the supporter counter.
func (e *Engine) IncrementSupporters(signer, creatorAddr crypto.Address) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	if err := authorize(signer, creator); err != nil {
		return nil, err
	}
	next, err := checkedIncrement(creator.TotalSupporters)
	if err != nil {
		return nil, err
	}
	creator.TotalSupporters = next
	if err := e.writeRecord(creatorAddr, creator); err != nil {
		return nil, err
	}
	e.emit(SupportersIncrementedEvent(creatorAddr, next))
	return creator.info(creatorAddr), nil
}

// Subscribe pays amount from subscriber to the creator's authority and
// counts the subscriber as a supporter.
func (e *Engine) Subscribe(subscriber, creatorAddr crypto.Address, amount uint64) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if e.bank == nil {
		return nil, fmt.Errorf("%w: ledger not configured", ErrTransferFailed)
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	if err := requireActive(creator); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	next, err := checkedIncrement(creator.TotalSupporters)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(subscriber, creator.Authority, subscriber, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	creator.TotalSupporters = next
	if err := e.writeRecord(creatorAddr, creator); err != nil {
		return nil, err
	}
	e.emit(CreatorSubscribedEvent(creatorAddr, subscriber, amount, next))
	return creator.info(creatorAddr), nil
}

// FetchCreator returns the private profile; only the authority may read it.
func (e *Engine) FetchCreator(signer, creatorAddr crypto.Address) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	if err := authorize(signer, creator); err != nil {
		return nil, err
	}
	return creator.info(creatorAddr), nil
}

// FetchCreatorPublic returns the profile without an authority check. The
// contact e-mail is withheld.
func (e *Engine) FetchCreatorPublic(creatorAddr crypto.Address) (*CreatorInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	creator, err := e.loadCreator(creatorAddr)
	if err != nil {
		return nil, err
	}
	info := creator.info(creatorAddr)
	info.Email = nil
	return info, nil
}
