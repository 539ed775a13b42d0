package archive

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
)

// ErrTxDone is returned when a transaction is committed or discarded twice.
var ErrTxDone = errors.New("archive: transaction already finished")

// Tx is a copy-on-write view of an Archive. Writes and removals are staged
// until Commit; Discard leaves the Archive exactly as it was. A Tx is safe
// for concurrent use.
type Tx struct {
	mu      sync.RWMutex
	base    *Archive
	writes  map[string][]byte
	removed map[string]struct{}
	added   []string
	done    bool
}

// Begin starts a transaction over a.
func (a *Archive) Begin() *Tx {
	return &Tx{
		base:    a,
		writes:  make(map[string][]byte),
		removed: make(map[string]struct{}),
	}
}

func (tx *Tx) Get(name string) ([]byte, bool) {
	name = Normalize(name)
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return tx.get(name)
}

func (tx *Tx) get(name string) ([]byte, bool) {
	if _, ok := tx.removed[name]; ok {
		return nil, false
	}
	if data, ok := tx.writes[name]; ok {
		return data, true
	}
	return tx.base.Get(name)
}

func (tx *Tx) Has(name string) bool {
	_, ok := tx.Get(name)
	return ok
}

func (tx *Tx) Set(name string, data []byte) {
	name = Normalize(name)
	if name == "" {
		return
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	_, inBase := tx.base.files[name]
	_, staged := tx.writes[name]
	_, wasRemoved := tx.removed[name]
	delete(tx.removed, name)
	if (!inBase || wasRemoved) && !staged {
		tx.added = append(tx.added, name)
	}
	tx.writes[name] = data
}

func (tx *Tx) Remove(name string) {
	name = Normalize(name)
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	delete(tx.writes, name)
	if i := slices.Index(tx.added, name); i >= 0 {
		tx.added = slices.Delete(tx.added, i, i+1)
	}
	if _, ok := tx.base.files[name]; ok {
		tx.removed[name] = struct{}{}
	}
}

// List yields the names visible through the transaction: surviving base
// entries in their original order followed by names added in this Tx.
func (tx *Tx) List(pred Predicate) iter.Seq[string] {
	tx.mu.RLock()
	names := make([]string, 0, len(tx.base.order)+len(tx.added))
	for _, name := range tx.base.order {
		if _, gone := tx.removed[name]; gone {
			continue
		}
		if slices.Contains(tx.added, name) {
			continue
		}
		names = append(names, name)
	}
	names = append(names, tx.added...)
	tx.mu.RUnlock()

	return func(yield func(string) bool) {
		for _, name := range names {
			if pred != nil && !pred(name) {
				continue
			}
			if !yield(name) {
				return
			}
		}
	}
}

// Pending reports the number of staged writes and removals.
func (tx *Tx) Pending() (writes, removals int) {
	tx.mu.RLock()
	defer tx.mu.RUnlock()
	return len(tx.writes), len(tx.removed)
}

// Commit applies every staged change to the underlying Archive.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	for name := range tx.removed {
		tx.base.Remove(name)
	}
	for _, name := range tx.base.order {
		if data, ok := tx.writes[name]; ok {
			tx.base.files[name] = data
		}
	}
	for _, name := range tx.added {
		tx.base.Set(name, tx.writes[name])
	}
	return nil
}

// Discard drops every staged change.
func (tx *Tx) Discard() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.writes = nil
	tx.removed = nil
	tx.added = nil
	return nil
}

// Update runs fn inside a transaction on a. The transaction is committed
// when fn returns nil and ctx is still live, and discarded otherwise.
func Update(ctx context.Context, a *Archive, fn func(tx *Tx) error) error {
	tx := a.Begin()
	err := fn(tx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = tx.Discard()
		return err
	}
	return tx.Commit()
}
