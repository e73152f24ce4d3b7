package uniqueness

import (
	"context"
	"sync"

	"registrar/internal/participant/models"
)

// InMemory keeps one map per dimension behind a single mutex.
type InMemory struct {
	mu     sync.Mutex // guards owners; held for the whole of Execute
	owners map[Dimension]map[string]string
}

func NewInMemory() *InMemory {
	owners := make(map[Dimension]map[string]string, len(Dimensions))
	for _, d := range Dimensions {
		owners[d] = make(map[string]string)
	}
	return &InMemory{owners: owners}
}

func (x *InMemory) Lookup(_ context.Context, d Dimension, key string) (string, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.lookupLocked(d, key)
}

func (x *InMemory) Add(_ context.Context, p models.Person, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(p, id)
	return nil
}

func (x *InMemory) Execute(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return fn(ctx, lockedIndex{x})
}

func (x *InMemory) lookupLocked(d Dimension, key string) (string, bool, error) {
	id, ok := x.owners[d][key]
	return id, ok, nil
}

func (x *InMemory) addLocked(p models.Person, id string) {
	for _, d := range Dimensions {
		key, ok := Key(d, p)
		if !ok {
			continue
		}
		if _, taken := x.owners[d][key]; !taken {
			x.owners[d][key] = id
		}
	}
}

// lockedIndex is handed to Execute callbacks; the mutex is already held.
type lockedIndex struct {
	x *InMemory
}

func (l lockedIndex) Lookup(_ context.Context, d Dimension, key string) (string, bool, error) {
	return l.x.lookupLocked(d, key)
}

func (l lockedIndex) Add(_ context.Context, p models.Person, id string) error {
	l.x.addLocked(p, id)
	return nil
}
