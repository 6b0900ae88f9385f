// Package cached decorates a DataStore with a Redis read-through cache.
//
// Select results are cached per class, criteria, order and window. Every
// successful write drops all cached results of the written table; writes made
// inside a transaction drop them once the transaction commits.
package cached

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/redis"
	"github.com/ammar0144/bo4go/pkg/store"
)

// Store caches the selects of the wrapped store
type Store struct {
	next   store.DataStore
	cache  *redis.Manager
	logger *zap.Logger
}

var (
	_ store.DataStore     = (*Store)(nil)
	_ store.Transactional = (*Store)(nil)
)

// New wraps next. With a disabled cache every call goes straight to next.
func New(next store.DataStore, cache *redis.Manager, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{next: next, cache: cache, logger: log.Named("cached")}
}

// Select implements store.DataStore. Cache failures are logged and the
// wrapped store answers instead.
func (s *Store) Select(ctx context.Context, def *bo.ClassDef, q store.Query) (store.Result, error) {
	if err := q.Validate(); err != nil {
		return store.Result{}, err
	}
	if !s.cache.Enabled() {
		return s.next.Select(ctx, def, q)
	}

	table := def.Table()
	metrics := s.cache.Metrics()
	key := s.Key(def, q)
	var res store.Result
	err := s.cache.GetValue(ctx, key, &res)
	if err == nil {
		metrics.RecordHit(table)
		if res.Rows == nil {
			res.Rows = []bo.Row{}
		}
		return res, nil
	}
	metrics.RecordMiss(table)
	if !redis.IsKeyNotFound(err) {
		metrics.RecordError(table)
		s.logger.Warn("cache read failed", zap.String("class", def.ClassName), zap.Error(err))
	}

	res, err = s.next.Select(ctx, def, q)
	if err != nil {
		return store.Result{}, err
	}
	if err := s.cache.SetValue(ctx, key, res, table); err != nil {
		s.logger.Warn("cache write failed", zap.String("class", def.ClassName), zap.Error(err))
	}
	return res, nil
}

// Insert implements store.DataStore
func (s *Store) Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error {
	if err := s.next.Insert(ctx, def, row); err != nil {
		return err
	}
	s.invalidate(ctx, def.Table())
	return nil
}

// Update implements store.DataStore
func (s *Store) Update(ctx context.Context, def *bo.ClassDef, key bo.Row, row bo.Row) error {
	if err := s.next.Update(ctx, def, key, row); err != nil {
		return err
	}
	s.invalidate(ctx, def.Table())
	return nil
}

// Delete implements store.DataStore
func (s *Store) Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error {
	if err := s.next.Delete(ctx, def, key); err != nil {
		return err
	}
	s.invalidate(ctx, def.Table())
	return nil
}

// WithinTx implements store.Transactional. When the wrapped store is not
// transactional fn runs directly against s.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.DataStore) error) error {
	txer, ok := s.next.(store.Transactional)
	if !ok {
		return fn(s)
	}

	w := &txWrites{tables: map[string]struct{}{}}
	err := txer.WithinTx(ctx, func(tx store.DataStore) error {
		return fn(&txStore{DataStore: tx, writes: w})
	})
	if err != nil {
		return err
	}
	for table := range w.tables {
		s.invalidate(ctx, table)
	}
	return nil
}

// Stats returns the cache counters per table
func (s *Store) Stats() redis.Stats {
	return s.cache.GetMetrics()
}

// Key returns the cache key of q on def
func (s *Store) Key(def *bo.ClassDef, q store.Query) string {
	h := xxhash.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.WriteString("\x00")
		}
	}
	write(def.ClassName, strings.Join(def.PropertyNames(), ","))
	write(q.Criteria.String(), q.OrderBy.String())
	write(strconv.Itoa(q.First), strconv.Itoa(q.Limit))
	return s.cache.Key("select", def.Table(), strconv.FormatUint(h.Sum64(), 16))
}

func (s *Store) invalidate(ctx context.Context, table string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.InvalidateDependency(ctx, table); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("table", table), zap.Error(err))
	}
}

// txWrites collects the tables written inside a transaction
type txWrites struct {
	mu     sync.Mutex
	tables map[string]struct{}
}

func (w *txWrites) add(table string) {
	w.mu.Lock()
	w.tables[table] = struct{}{}
	w.mu.Unlock()
}

// txStore records written tables and leaves reads uncached, so that nothing
// the transaction has not committed yet reaches the cache
type txStore struct {
	store.DataStore
	writes *txWrites
}

func (t *txStore) Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error {
	t.writes.add(def.Table())
	return t.DataStore.Insert(ctx, def, row)
}

func (t *txStore) Update(ctx context.Context, def *bo.ClassDef, key bo.Row, row bo.Row) error {
	t.writes.add(def.Table())
	return t.DataStore.Update(ctx, def, key, row)
}

func (t *txStore) Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error {
	t.writes.add(def.Table())
	return t.DataStore.Delete(ctx, def, key)
}
