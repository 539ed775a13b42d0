package recovery

import (
	"fmt"
	"sync"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy skips the failing part and records the error. It is safe
// for concurrent use by media workers.
type LenientStrategy struct {
	mu     sync.Mutex
	errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, fmt.Errorf("[%s] %s: %w", location.Component, location.Part, err))
	return ActionSkip
}

// Errors returns a copy of every error recorded so far.
func (s *LenientStrategy) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}
