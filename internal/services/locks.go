package services

import (
	"sync"

	"github.com/google/uuid"
)

// ProjectLocker serializes mirror writes per project. Reconciliation and the
// milestone state machine both read-then-write mirror rows; interleaved runs
// for the same project could compute stale corrections. Distinct projects
// proceed in parallel.
type ProjectLocker struct {
	mu sync.Map // uuid.UUID -> *sync.Mutex
}

func NewProjectLocker() *ProjectLocker { return &ProjectLocker{} }

// Lock acquires the project's mutex and returns the unlock func.
func (l *ProjectLocker) Lock(projectID uuid.UUID) func() {
	v, _ := l.mu.LoadOrStore(projectID, &sync.Mutex{})
	m := v.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}
