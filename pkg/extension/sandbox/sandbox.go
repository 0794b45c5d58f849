package sandbox

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// Limits controls how a hook is supervised. Hooks are never preempted: a
// hung hook keeps the caller blocked, WarnAfter only reports it.
type Limits struct {
	WarnAfter time.Duration
}

func DefaultLimits() Limits {
	return Limits{}
}

// SlowFunc is called once per hook invocation that outlives WarnAfter.
type SlowFunc func(owner, hook string, elapsed time.Duration)

// Sandbox is the failure boundary around extension hooks. It turns panics
// into errors so a misbehaving extension cannot take the process down.
type Sandbox struct {
	owner  string
	limits Limits
	onSlow SlowFunc

	mu       sync.RWMutex
	calls    int64
	failures int64
	lastErr  error
}

func NewSandbox(owner string, limits Limits, onSlow SlowFunc) *Sandbox {
	return &Sandbox{
		owner:  owner,
		limits: limits,
		onSlow: onSlow,
	}
}

// Execute runs fn on the calling goroutine and returns its error, or a
// wrapped panic value if fn panicked.
func (s *Sandbox) Execute(hook string, fn func() error) (err error) {
	if s.limits.WarnAfter > 0 && s.onSlow != nil {
		started := time.Now()
		timer := time.AfterFunc(s.limits.WarnAfter, func() {
			s.onSlow(s.owner, hook, time.Since(started))
		})
		defer timer.Stop()
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Owner: s.owner, Hook: hook, Value: r, Stack: debug.Stack()}
		}
		s.record(err)
	}()

	return fn()
}

func (s *Sandbox) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if err != nil {
		s.failures++
		s.lastErr = err
	}
}

// Stats reports how many hooks ran through this sandbox and how many failed.
func (s *Sandbox) Stats() (calls, failures int64, lastErr error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls, s.failures, s.lastErr
}

type PanicError struct {
	Owner string
	Hook  string
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: %s panicked: %v", e.Owner, e.Hook, e.Value)
}
