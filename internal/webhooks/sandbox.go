package webhooks

import (
	"sync"

	"github.com/hypermarketllc/hookline/internal/dispatchlog"
)

// Sandbox tracks test mode and holds the single-slot test result. Test-mode
// dispatches route their outcome here instead of the execution log, and the
// slot keeps its value until explicitly cleared or test mode is re-entered.
type Sandbox struct {
	mu      sync.RWMutex
	testing bool
	result  *dispatchlog.Entry
}

// NewSandbox creates a sandbox in the Normal state.
func NewSandbox() *Sandbox {
	return &Sandbox{}
}

// Enter switches to the Testing state and clears any stale result.
func (s *Sandbox) Enter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testing = true
	s.result = nil
}

// Exit switches back to the Normal state. The result slot is left intact
// and in-flight test dispatches are unaffected.
func (s *Sandbox) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testing = false
}

// Testing reports whether the sandbox is in the Testing state.
func (s *Sandbox) Testing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.testing
}

// SetResult overwrites the test-result slot.
func (s *Sandbox) SetResult(entry *dispatchlog.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = entry
}

// Result returns the current test result, or nil.
func (s *Sandbox) Result() *dispatchlog.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Clear empties the test-result slot.
func (s *Sandbox) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = nil
}
