package estimation

import (
	"sync"

	"github.com/google/uuid"
)

// ProjectLocks serialises writers per project. Different projects never block
// each other.
type ProjectLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*projectLock
}

type projectLock struct {
	mu   sync.Mutex
	refs int
}

func NewProjectLocks() *ProjectLocks {
	return &ProjectLocks{locks: make(map[uuid.UUID]*projectLock)}
}

// Lock blocks until the caller is the only writer of the project and returns
// the matching unlock.
func (p *ProjectLocks) Lock(id uuid.UUID) func() {
	p.mu.Lock()
	l, ok := p.locks[id]
	if !ok {
		l = &projectLock{}
		p.locks[id] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, id)
		}
		p.mu.Unlock()
	}
}
