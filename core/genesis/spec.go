package genesis

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"patreonix/crypto"
)

// Spec is the YAML genesis document applied once to an empty data directory.
type Spec struct {
	ProgramID string        `yaml:"programId"`
	Authority string        `yaml:"authority,omitempty"`
	Balances  []BalanceSpec `yaml:"balances,omitempty"`

	programID crypto.Address
	authority *crypto.Address
	balances  []Allocation
}

type BalanceSpec struct {
	Address string `yaml:"address"`
	Amount  string `yaml:"amount"`
}

// Allocation is a validated initial balance.
type Allocation struct {
	Address crypto.Address
	Amount  *uint256.Int
}

// LoadSpec reads and validates the genesis file at path.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a YAML genesis document.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode genesis spec: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

func (s *Spec) validate() error {
	programID, err := crypto.DecodeAddress(strings.TrimSpace(s.ProgramID))
	if err != nil {
		return fmt.Errorf("programId: %w", err)
	}
	s.programID = programID

	if trimmed := strings.TrimSpace(s.Authority); trimmed != "" {
		authority, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			return fmt.Errorf("authority: %w", err)
		}
		s.authority = &authority
	}

	seen := make(map[crypto.Address]struct{}, len(s.Balances))
	s.balances = make([]Allocation, 0, len(s.Balances))
	for i, b := range s.Balances {
		addr, err := crypto.DecodeAddress(strings.TrimSpace(b.Address))
		if err != nil {
			return fmt.Errorf("balances[%d].address: %w", i, err)
		}
		if _, dup := seen[addr]; dup {
			return fmt.Errorf("balances[%d]: duplicate address %s", i, addr)
		}
		seen[addr] = struct{}{}
		amount, err := uint256.FromDecimal(strings.TrimSpace(b.Amount))
		if err != nil {
			return fmt.Errorf("balances[%d].amount: %w", i, err)
		}
		if amount.IsZero() {
			return fmt.Errorf("balances[%d].amount must be positive", i)
		}
		s.balances = append(s.balances, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(s.balances, func(i, j int) bool {
		return s.balances[i].Address.Compare(s.balances[j].Address) < 0
	})
	return nil
}

// ProgramIDValue returns the parsed program id.
func (s *Spec) ProgramIDValue() crypto.Address { return s.programID }

// AuthorityValue returns the identity that initializes the program state, if any.
func (s *Spec) AuthorityValue() (crypto.Address, bool) {
	if s.authority == nil {
		return crypto.Address{}, false
	}
	return *s.authority, true
}

// Allocations returns the initial balances ordered by address.
func (s *Spec) Allocations() []Allocation {
	out := make([]Allocation, len(s.balances))
	copy(out, s.balances)
	return out
}

// Digest fingerprints the validated content so a data directory can detect a
// different genesis being applied on restart.
func (s *Spec) Digest() []byte {
	var buf bytes.Buffer
	buf.Write(s.programID[:])
	if s.authority != nil {
		buf.Write(s.authority[:])
	}
	for _, a := range s.balances {
		buf.Write(a.Address[:])
		amount := a.Amount.Bytes32()
		buf.Write(amount[:])
	}
	return ethcrypto.Keccak256(buf.Bytes())
}
