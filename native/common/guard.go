package common

import (
	"errors"
	"sort"
	"sync"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
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

// PauseSet is a mutable PauseView. The zero value has nothing paused.
type PauseSet struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauseSet returns a set with the listed modules paused.
func NewPauseSet(modules ...string) *PauseSet {
	p := &PauseSet{}
	for _, module := range modules {
		p.Set(module, true)
	}
	return p
}

func (p *PauseSet) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}

// Set toggles the pause flag for module.
func (p *PauseSet) Set(module string, paused bool) {
	if module == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !paused {
		delete(p.paused, module)
		return
	}
	if p.paused == nil {
		p.paused = make(map[string]bool)
	}
	p.paused[module] = true
}

// Modules returns the paused modules in sorted order.
func (p *PauseSet) Modules() []string {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.paused))
	for module := range p.paused {
		out = append(out, module)
	}
	sort.Strings(out)
	return out
}
