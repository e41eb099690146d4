package domain

import (
	"context"
	"sync"

	m "faultline.dev/pkg/faultline/internal/model"
)

// FileLeases grants exclusive, per-file leases: no two holders may have an
// uncommitted instrumentation of the same file at once.
type FileLeases struct {
	mu     sync.Mutex
	leases map[m.Path]chan struct{}
}

// NewFileLeases constructs an empty lease table.
func NewFileLeases() *FileLeases {
	return &FileLeases{leases: make(map[m.Path]chan struct{})}
}

func (l *FileLeases) slot(file m.Path) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.leases[file]
	if !ok {
		ch = make(chan struct{}, 1)
		l.leases[file] = ch
	}

	return ch
}

// Acquire blocks until the lease on file is free or ctx is done. The returned
// function releases the lease; calling it more than once is a no-op.
func (l *FileLeases) Acquire(ctx context.Context, file m.Path) (func(), error) {
	ch := l.slot(file)

	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() { once.Do(func() { <-ch }) }, nil
}
