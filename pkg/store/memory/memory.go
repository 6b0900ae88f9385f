// Package memory provides an in-process transactional DataStore.
//
// Rows are kept per table in insertion order. Transactions work on a cloned
// state that replaces the live state only when the transaction function
// succeeds.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/store"
)

type table struct {
	keys []bo.Key
	rows map[bo.Key]bo.Row
}

type state map[string]*table

func (s state) table(def *bo.ClassDef) *table {
	t, ok := s[def.Table()]
	if !ok {
		t = &table{rows: map[bo.Key]bo.Row{}}
		s[def.Table()] = t
	}
	return t
}

func (s state) clone() state {
	out := make(state, len(s))
	for name, t := range s {
		cp := &table{keys: append([]bo.Key(nil), t.keys...), rows: make(map[bo.Key]bo.Row, len(t.rows))}
		for k, r := range t.rows {
			cp.rows[k] = r.Clone()
		}
		out[name] = cp
	}
	return out
}

// Store is a DataStore holding rows in memory
type Store struct {
	mu    sync.RWMutex
	state state
}

var (
	_ store.DataStore     = (*Store)(nil)
	_ store.Transactional = (*Store)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{state: state{}}
}

// Select implements store.DataStore
func (s *Store) Select(ctx context.Context, def *bo.ClassDef, q store.Query) (store.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: s.state}.Select(ctx, def, q)
}

// Insert implements store.DataStore
func (s *Store) Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{state: s.state}.Insert(ctx, def, row)
}

// Update implements store.DataStore
func (s *Store) Update(ctx context.Context, def *bo.ClassDef, key bo.Row, row bo.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{state: s.state}.Update(ctx, def, key, row)
}

// Delete implements store.DataStore
func (s *Store) Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return view{state: s.state}.Delete(ctx, def, key)
}

// WithinTx implements store.Transactional
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.DataStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := view{state: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// Count returns the number of rows stored for def
func (s *Store) Count(def *bo.ClassDef) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.state[def.Table()]; ok {
		return len(t.keys)
	}
	return 0
}

// view runs operations against a state without locking
type view struct {
	state state
}

func (v view) Select(ctx context.Context, def *bo.ClassDef, q store.Query) (store.Result, error) {
	if err := ctx.Err(); err != nil {
		return store.Result{}, err
	}
	if err := q.Validate(); err != nil {
		return store.Result{}, err
	}
	t, ok := v.state[def.Table()]
	if !ok {
		return store.Result{Rows: []bo.Row{}}, nil
	}
	rows := make([]bo.Row, len(t.keys))
	for i, k := range t.keys {
		rows[i] = t.rows[k].Clone()
	}
	return store.Apply(rows, q), nil
}

func (v view) Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.state.table(def)
	k := bo.KeyOf(def, row)
	if _, exists := t.rows[k]; exists {
		return fmt.Errorf("insert %s %s: %w", def.ClassName, k, store.ErrDuplicateKey)
	}
	t.keys = append(t.keys, k)
	t.rows[k] = row.Clone()
	return nil
}

func (v view) Update(ctx context.Context, def *bo.ClassDef, key bo.Row, row bo.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.state.table(def)
	oldKey := bo.KeyOf(def, key)
	if _, ok := t.rows[oldKey]; !ok {
		return fmt.Errorf("update %s %s: %w", def.ClassName, oldKey, errs.ErrNotFound)
	}
	newKey := bo.KeyOf(def, row)
	if newKey != oldKey {
		if _, exists := t.rows[newKey]; exists {
			return fmt.Errorf("update %s %s: %w", def.ClassName, newKey, store.ErrDuplicateKey)
		}
		delete(t.rows, oldKey)
		for i, k := range t.keys {
			if k == oldKey {
				t.keys[i] = newKey
			}
		}
	}
	t.rows[newKey] = row.Clone()
	return nil
}

func (v view) Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := v.state.table(def)
	k := bo.KeyOf(def, key)
	if _, ok := t.rows[k]; !ok {
		return fmt.Errorf("delete %s %s: %w", def.ClassName, k, errs.ErrNotFound)
	}
	delete(t.rows, k)
	for i, existing := range t.keys {
		if existing == k {
			t.keys = append(t.keys[:i], t.keys[i+1:]...)
			break
		}
	}
	return nil
}
