package persistence

import (
	"time"
)

// Hooks captures persistence-level observability events. Metrics backends are
// wired by the caller; the default is a no-op.
type Hooks interface {
	ObserveOperation(name, status string, dur time.Duration)
	IncConflict(name string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}

// NoopHooks returns hooks that drop every signal.
func NoopHooks() Hooks { return noopHooks{} }
