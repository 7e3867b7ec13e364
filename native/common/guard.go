package common

import (
	"errors"
	"sort"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

// PauseView reports operator pauses by module name.
type PauseView interface {
	IsPaused(module string) bool
}

// PauseController is a PauseView operators can flip at runtime.
type PauseController interface {
	PauseView
	SetPaused(module string, paused bool)
	Paused() []string
}

// Switch is a concurrency-safe PauseController seeded from configuration.
type Switch struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewSwitch marks every listed module as paused.
func NewSwitch(modules ...string) *Switch {
	s := &Switch{paused: make(map[string]bool, len(modules))}
	for _, m := range modules {
		if m != "" {
			s.paused[m] = true
		}
	}
	return s
}

func (s *Switch) IsPaused(module string) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[module]
}

// SetPaused pauses or resumes module. Empty module names are ignored.
func (s *Switch) SetPaused(module string, paused bool) {
	if s == nil || module == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if paused {
		s.paused[module] = true
		return
	}
	delete(s.paused, module)
}

// Paused lists the paused modules in sorted order.
func (s *Switch) Paused() []string {
	if s == nil {
		return []string{}
	}
	s.mu.RLock()
	out := make([]string, 0, len(s.paused))
	for m := range s.paused {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
