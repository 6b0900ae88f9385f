package cached

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/criteria"
	"github.com/ammar0144/bo4go/pkg/order"
	"github.com/ammar0144/bo4go/pkg/redis"
	"github.com/ammar0144/bo4go/pkg/store"
	"github.com/ammar0144/bo4go/pkg/store/memory"
)

var carDef = &bo.ClassDef{
	ClassName:  "Car",
	Properties: []bo.PropDef{{Name: "CarID"}, {Name: "OwnerID"}, {Name: "RegNo"}},
	PrimaryKey: []string{"CarID"},
}

var personDef = &bo.ClassDef{
	ClassName:  "ContactPerson",
	Properties: []bo.PropDef{{Name: "ContactPersonID"}, {Name: "Surname"}},
	PrimaryKey: []string{"ContactPersonID"},
}

type fixture struct {
	backing *memory.Store
	cached  *Store
	srv     *miniredis.Miniredis
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := miniredis.RunT(t)
	cfg := redis.DefaultConfig()
	cfg.Enabled = true
	mgr, err := redis.NewManagerWithClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	core, logs := observer.New(zapcore.DebugLevel)
	backing := memory.New()
	return &fixture{backing: backing, cached: New(backing, mgr, zap.New(core)), srv: srv, logs: logs}
}

func (f *fixture) seed(t *testing.T, regNos ...string) {
	t.Helper()
	for _, r := range regNos {
		require.NoError(t, f.backing.Insert(context.Background(), carDef, bo.Row{"CarID": "c-" + r, "OwnerID": "p1", "RegNo": r}))
	}
}

func regNos(rows []bo.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r["RegNo"].(string)
	}
	return out
}

func byOwner() store.Query {
	return store.All(criteria.Eq("OwnerID", "p1"), order.MustParse("RegNo"))
}

func TestSelectIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "B", "A")

	res, err := f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, regNos(res.Rows))
	assert.True(t, f.srv.Exists(f.cached.Key(carDef, byOwner())))

	// written behind the cache's back, so the cached answer stays
	f.seed(t, "C")
	res, err = f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, regNos(res.Rows))
	assert.Equal(t, 2, res.Total)

	require.NoError(t, f.cached.Insert(ctx, carDef, bo.Row{"CarID": "c-D", "OwnerID": "p1", "RegNo": "D"}))
	res, err = f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, regNos(res.Rows))

	assert.Equal(t, redis.TableStats{Hits: 1, Misses: 2, Stores: 2, Invalidations: 1}, f.cached.Stats().Tables["Car"])
}

func TestKeysDifferPerQuery(t *testing.T) {
	f := newFixture(t)
	base := byOwner()
	window := base
	window.First, window.Limit = 1, 2
	desc := store.All(base.Criteria, order.MustParse("RegNo DESC"))

	keys := map[string]bool{}
	for _, q := range []store.Query{base, window, desc, store.All(nil, nil)} {
		keys[f.cached.Key(carDef, q)] = true
	}
	assert.Len(t, keys, 4)
	assert.Equal(t, f.cached.Key(carDef, byOwner()), f.cached.Key(carDef, byOwner()))
	assert.Contains(t, f.cached.Key(carDef, base), "bo4go:select:Car:")
}

func TestEmptyWindowIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "A", "B", "C")
	q := byOwner()
	q.Limit = 0

	for i := 0; i < 2; i++ {
		res, err := f.cached.Select(ctx, carDef, q)
		require.NoError(t, err)
		assert.NotNil(t, res.Rows)
		assert.Empty(t, res.Rows)
		assert.Equal(t, 3, res.Total)
	}
}

func TestWritesInvalidateOnlyTheirTable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "A")
	require.NoError(t, f.backing.Insert(ctx, personDef, bo.Row{"ContactPersonID": "p1", "Surname": "Adams"}))

	_, err := f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	_, err = f.cached.Select(ctx, personDef, store.All(nil, nil))
	require.NoError(t, err)

	require.NoError(t, f.cached.Update(ctx, personDef, bo.Row{"ContactPersonID": "p1"}, bo.Row{"ContactPersonID": "p1", "Surname": "Abbot"}))
	assert.True(t, f.srv.Exists(f.cached.Key(carDef, byOwner())))
	assert.False(t, f.srv.Exists(f.cached.Key(personDef, store.All(nil, nil))))

	require.NoError(t, f.cached.Delete(ctx, carDef, bo.Row{"CarID": "c-A"}))
	assert.False(t, f.srv.Exists(f.cached.Key(carDef, byOwner())))

	err = f.cached.Delete(ctx, carDef, bo.Row{"CarID": "c-A"})
	assert.Error(t, err)
}

func TestTransactionInvalidatesOnCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "A")
	key := f.cached.Key(carDef, byOwner())

	_, err := f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)

	boom := errors.New("boom")
	err = f.cached.WithinTx(ctx, func(tx store.DataStore) error {
		require.NoError(t, tx.Insert(ctx, carDef, bo.Row{"CarID": "c-B", "OwnerID": "p1", "RegNo": "B"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.srv.Exists(key))

	err = f.cached.WithinTx(ctx, func(tx store.DataStore) error {
		res, err := tx.Select(ctx, carDef, byOwner())
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		return tx.Insert(ctx, carDef, bo.Row{"CarID": "c-B", "OwnerID": "p1", "RegNo": "B"})
	})
	require.NoError(t, err)
	assert.False(t, f.srv.Exists(key))

	res, err := f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, regNos(res.Rows))
}

func TestCorruptEntryFallsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seed(t, "A")
	require.NoError(t, f.srv.Set(f.cached.Key(carDef, byOwner()), "\x09???"))

	res, err := f.cached.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, regNos(res.Rows))
	assert.Equal(t, 1, f.logs.FilterMessage("cache read failed").Len())
	assert.Equal(t, redis.TableStats{Misses: 1, Errors: 1, Stores: 1}, f.cached.Stats().Tables["Car"])
}

func TestDisabledCachePassesThrough(t *testing.T) {
	mgr, err := redis.NewManager(redis.DefaultConfig(), nil)
	require.NoError(t, err)
	backing := memory.New()
	s := New(backing, mgr, nil)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, carDef, bo.Row{"CarID": "c1", "OwnerID": "p1", "RegNo": "A"}))
	require.NoError(t, backing.Insert(ctx, carDef, bo.Row{"CarID": "c2", "OwnerID": "p1", "RegNo": "B"}))

	res, err := s.Select(ctx, carDef, byOwner())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, regNos(res.Rows))

	_, err = s.Select(ctx, carDef, store.Query{First: -1})
	assert.Error(t, err)
}

type plainStore struct{ store.DataStore }

func TestWithinTxWithoutTransactionalStore(t *testing.T) {
	f := newFixture(t)
	s := New(plainStore{f.backing}, f.cached.cache, nil)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx store.DataStore) error {
		assert.Same(t, s, tx)
		return tx.Insert(ctx, carDef, bo.Row{"CarID": "c1", "OwnerID": "p1", "RegNo": "A"})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.backing.Count(carDef))
}
