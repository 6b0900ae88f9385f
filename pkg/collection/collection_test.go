package collection_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammar0144/bo4go/internal/testbo"
	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/collection"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/store"
	"github.com/ammar0144/bo4go/pkg/store/memory"
)

var loadedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func fixedNow() time.Time { return loadedAt }

// row returns a full row of def with the given property values
func row(def *bo.ClassDef, kv ...any) bo.Row {
	r := bo.Row{}
	for _, p := range def.Properties {
		r[p.Name] = p.Default
	}
	for i := 0; i+1 < len(kv); i += 2 {
		r[kv[i].(string)] = kv[i+1]
	}
	return r
}

func personRow(id, surname string, age int) bo.Row {
	return row(testbo.ContactPersonDef, "ContactPersonID", id, "Surname", surname, "Age", age)
}

func seed(t *testing.T, s *memory.Store, def *bo.ClassDef, rows ...bo.Row) {
	t.Helper()
	for _, r := range rows {
		require.NoError(t, s.Insert(context.Background(), def, r))
	}
}

func newPeople(t *testing.T, rows ...bo.Row) (*memory.Store, *testbo.Env, *collection.Collection[*testbo.ContactPerson]) {
	t.Helper()
	s := memory.New()
	seed(t, s, testbo.ContactPersonDef, rows...)
	env := testbo.NewEnv(s)
	c := collection.New(collection.Options[*testbo.ContactPerson]{
		ClassDef: testbo.ContactPersonDef,
		Factory:  env.ContactPeople(),
		Store:    s,
		Now:      fixedNow,
	})
	return s, env, c
}

func storeAll() store.Query {
	return store.All(nil, nil)
}

func surnames(items []*testbo.ContactPerson) []string {
	out := make([]string, len(items))
	for i, p := range items {
		out[i] = p.Surname()
	}
	return out
}

// watch records collection events as "kind:key"
func watch[T bo.BusinessObject](c *collection.Collection[T]) *[]string {
	var log []string
	for _, kind := range []collection.EventKind{
		collection.BusinessObjectAdded,
		collection.BusinessObjectRemoved,
		collection.BusinessObjectUpdated,
		collection.BusinessObjectIDUpdated,
	} {
		c.On(kind, func(e collection.Event[T]) {
			log = append(log, fmt.Sprintf("%s:%s", e.Kind, e.Object.Core().Key()))
		})
	}
	return &log
}

// assertConsistent checks the relations that hold between membership sets
func assertConsistent[T bo.BusinessObject](t *testing.T, c *collection.Collection[T]) {
	t.Helper()
	set := func(items []T) map[*bo.Base]bool {
		m := map[*bo.Base]bool{}
		for _, obj := range items {
			m[obj.Core()] = true
		}
		return m
	}
	current := set(c.Items())
	created := set(c.CreatedBusinessObjects())
	added := set(c.AddedBusinessObjects())
	persisted := set(c.PersistedBusinessObjects())
	removed := set(c.RemovedBusinessObjects())
	deleted := set(c.MarkedForDeleteBusinessObjects())

	for obj := range current {
		n := 0
		for _, s := range []map[*bo.Base]bool{created, added, persisted} {
			if s[obj] {
				n++
			}
		}
		assert.Equal(t, 1, n, "current member %s must be in exactly one of created, added, persisted", obj.Key())
		assert.False(t, removed[obj], "current member %s is also removed", obj.Key())
		assert.False(t, deleted[obj], "current member %s is also marked for delete", obj.Key())
	}
	for obj := range removed {
		assert.True(t, persisted[obj], "removed member %s is not persisted", obj.Key())
	}
	for obj := range deleted {
		assert.True(t, persisted[obj], "deleted member %s is not persisted", obj.Key())
	}
	for obj := range created {
		assert.True(t, current[obj], "created member %s is not current", obj.Key())
	}
	for obj := range added {
		assert.True(t, current[obj], "added member %s is not current", obj.Key())
	}
}

func TestLoadAll(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Smith", 40), personRow("p2", "Jones", 31))

	_, ok := c.TimeLastLoaded()
	assert.False(t, ok)

	require.NoError(t, c.LoadAll(context.Background()))
	assert.Equal(t, 2, c.Count())
	assert.Len(t, c.PersistedBusinessObjects(), 2)
	assert.Empty(t, c.CreatedBusinessObjects())
	assert.Equal(t, 2, c.TotalCountAvailableForPaging())

	at, ok := c.TimeLastLoaded()
	require.True(t, ok)
	assert.Equal(t, loadedAt, at)

	p, ok := c.Find(bo.Key("ContactPersonID=p1"))
	require.True(t, ok)
	assert.Equal(t, "Smith", p.Surname())
	assert.False(t, p.Status().IsNew)
	assert.False(t, p.Status().IsDirty)
	assertConsistent(t, c)
}

func TestLoadWithLimit(t *testing.T) {
	var rows []bo.Row
	for i, name := range []string{"c", "a", "g", "e", "b", "f", "d"} {
		rows = append(rows, personRow(fmt.Sprintf("p%d", i), name, i))
	}
	_, _, c := newPeople(t, rows...)
	ctx := context.Background()

	total, err := c.LoadWithLimit(ctx, nil, "Surname", 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []string{"d", "e", "f", "g"}, surnames(c.Items()))
	assert.Equal(t, 7, c.TotalCountAvailableForPaging())

	total, err = c.LoadWithLimit(ctx, nil, "Surname DESC", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []string{"g", "f"}, surnames(c.Items()))

	total, err = c.LoadWithLimit(ctx, nil, "Surname", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Zero(t, c.Count())

	total, err = c.LoadWithLimit(ctx, nil, "Surname", 5, -1)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Equal(t, []string{"f", "g"}, surnames(c.Items()))

	_, err = c.LoadWithLimit(ctx, nil, "Surname", -1, 4)
	require.Error(t, err)
	assert.True(t, errs.IsIndexOutOfRange(err))
	assert.Equal(t, "FirstRecordToLoad should not be negative.", err.Error())

	_, err = c.LoadWithLimit(ctx, nil, "Surname SIDEWAYS", 0, 4)
	assert.True(t, errs.IsParse(err))
}

func TestLoadRequiresStore(t *testing.T) {
	env := testbo.NewEnv(nil)
	c := collection.New(collection.Options[*testbo.ContactPerson]{ClassDef: testbo.ContactPersonDef, Factory: env.ContactPeople()})

	err := c.LoadAll(context.Background())
	assert.True(t, errs.IsConfiguration(err))

	_, err = c.CreateBusinessObject()
	require.NoError(t, err)
	assert.True(t, errs.IsConfiguration(c.SaveAll(context.Background())))
}

func TestLoadWithCancelledContext(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Smith", 40))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.LoadAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPersistence))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAddAndRemove(t *testing.T) {
	_, env, c := newPeople(t, personRow("p1", "Smith", 40))
	ctx := context.Background()
	require.NoError(t, c.LoadAll(ctx))
	log := watch(c)

	p1, _ := c.At(0)
	fresh := env.NewContactPerson()
	subscribers := fresh.SubscriberCount()

	require.NoError(t, c.Add(fresh))
	require.NoError(t, c.Add(fresh))
	assert.Equal(t, 2, c.Count())
	assert.Equal(t, []*testbo.ContactPerson{fresh}, c.CreatedBusinessObjects())
	assertConsistent(t, c)

	require.NoError(t, c.Remove(fresh))
	assert.Equal(t, 1, c.Count())
	assert.Empty(t, c.CreatedBusinessObjects())
	assert.Equal(t, subscribers, fresh.SubscriberCount(), "a dropped object is no longer observed")

	require.NoError(t, c.Remove(p1))
	assert.Zero(t, c.Count())
	assert.Equal(t, []*testbo.ContactPerson{p1}, c.RemovedBusinessObjects())
	assert.Equal(t, []*testbo.ContactPerson{p1}, c.PersistedBusinessObjects())
	assertConsistent(t, c)

	require.NoError(t, c.Add(p1))
	assert.Empty(t, c.RemovedBusinessObjects())
	assert.Empty(t, c.AddedBusinessObjects())
	assert.True(t, c.Contains(p1))
	assertConsistent(t, c)

	stranger := env.NewContactPerson()
	stranger.Load(personRow("p7", "Brown", 22))
	require.NoError(t, c.Add(stranger))
	assert.Equal(t, []*testbo.ContactPerson{stranger}, c.AddedBusinessObjects())
	assertConsistent(t, c)

	freshKey := fresh.Key().String()
	assert.Equal(t, []string{
		"added:" + freshKey,
		"removed:" + freshKey,
		"removed:ContactPersonID=p1",
		"added:ContactPersonID=p1",
		"added:ContactPersonID=p7",
	}, *log)
}

func TestAddNull(t *testing.T) {
	_, _, c := newPeople(t)

	var p *testbo.ContactPerson
	err := c.Add(p)
	require.Error(t, err)
	assert.True(t, errs.IsDeveloper(err))
	assert.Equal(t, "a ContactPerson could not be added since the business object is null", err.Error())
	assert.Zero(t, c.Count())
}

func TestIndexOutOfRange(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Smith", 40))
	require.NoError(t, c.LoadAll(context.Background()))

	for _, err := range []error{
		c.RemoveAt(1),
		c.RemoveAt(-1),
		c.MarkForDeleteAt(3),
		func() error { _, err := c.At(1); return err }(),
	} {
		require.Error(t, err)
		assert.True(t, errs.IsIndexOutOfRange(err))
		assert.Equal(t, "Index was out of range. Must be non-negative and less than the size of the collection.", err.Error())
	}
	assert.Equal(t, 1, c.Count())

	require.NoError(t, c.RemoveAt(0))
	assert.Zero(t, c.Count())
}

func TestMarkForDelete(t *testing.T) {
	_, env, c := newPeople(t, personRow("p1", "Smith", 40), personRow("p2", "Jones", 31))
	require.NoError(t, c.Load(context.Background(), nil, "Surname"))
	log := watch(c)

	fresh, err := c.CreateBusinessObject()
	require.NoError(t, err)
	err = c.MarkForDelete(fresh)
	require.Error(t, err)
	assert.True(t, errs.IsDeveloper(err))
	assert.Contains(t, err.Error(), "never been persisted")

	outsider := env.NewContactPerson()
	outsider.Load(personRow("p9", "Gray", 50))
	err = c.MarkForDelete(outsider)
	assert.True(t, errs.IsDeveloper(err))

	jones, _ := c.At(0)
	require.NoError(t, c.MarkForDelete(jones))
	require.NoError(t, c.MarkForDelete(jones))
	assert.True(t, jones.Status().IsDeleted)
	assert.False(t, c.Contains(jones))
	assert.Equal(t, []*testbo.ContactPerson{jones}, c.MarkedForDeleteBusinessObjects())
	assertConsistent(t, c)

	jones.CancelEdits()
	assert.False(t, jones.Status().IsDeleted)
	assert.True(t, c.Contains(jones))
	assert.Empty(t, c.MarkedForDeleteBusinessObjects())
	assertConsistent(t, c)

	assert.Equal(t, []string{
		"added:" + fresh.Key().String(),
		"removed:ContactPersonID=p2",
		"added:ContactPersonID=p2",
	}, *log)
}

func TestSharedObjectFollowsLifecycle(t *testing.T) {
	_, env, first := newPeople(t)
	second := collection.New(collection.Options[*testbo.ContactPerson]{ClassDef: testbo.ContactPersonDef, Factory: env.ContactPeople()})

	p := env.NewContactPerson()
	p.Load(personRow("p1", "Smith", 40))
	require.NoError(t, first.Add(p))
	require.NoError(t, second.Add(p))

	require.NoError(t, p.MarkForDelete())
	for _, c := range []*collection.Collection[*testbo.ContactPerson]{first, second} {
		assert.False(t, c.Contains(p))
		assert.Equal(t, []*testbo.ContactPerson{p}, c.MarkedForDeleteBusinessObjects())
		assertConsistent(t, c)
	}

	p.CancelEdits()
	for _, c := range []*collection.Collection[*testbo.ContactPerson]{first, second} {
		assert.True(t, c.Contains(p))
		assertConsistent(t, c)
	}
}

func TestRestoreAll(t *testing.T) {
	_, env, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 31), personRow("p3", "Clark", 25))
	require.NoError(t, c.Load(context.Background(), nil, "Surname"))
	before := c.Items()

	_, err := c.CreateBusinessObject()
	require.NoError(t, err)
	stranger := env.NewContactPerson()
	stranger.Load(personRow("p7", "Brown", 22))
	require.NoError(t, c.Add(stranger))
	require.NoError(t, c.Remove(before[1]))
	require.NoError(t, c.MarkForDelete(before[2]))
	require.NoError(t, before[0].SetPropertyValue("Surname", "Allen"))
	assertConsistent(t, c)

	require.NoError(t, c.RestoreAll())
	assert.Equal(t, before, c.Items())
	assert.Empty(t, c.CreatedBusinessObjects())
	assert.Empty(t, c.AddedBusinessObjects())
	assert.Empty(t, c.RemovedBusinessObjects())
	assert.Empty(t, c.MarkedForDeleteBusinessObjects())
	assert.False(t, before[2].Status().IsDeleted)
	assert.Equal(t, "Allen", before[0].Surname(), "property edits are not membership changes")
	assertConsistent(t, c)
}

func TestRestoreAllUndoesMixedSequences(t *testing.T) {
	sequences := map[string]func(t *testing.T, env *testbo.Env, c *collection.Collection[*testbo.ContactPerson], loaded []*testbo.ContactPerson){
		"add persisted then mark for delete": func(t *testing.T, env *testbo.Env, c *collection.Collection[*testbo.ContactPerson], _ []*testbo.ContactPerson) {
			stranger := env.NewContactPerson()
			stranger.Load(personRow("p7", "Brown", 22))
			require.NoError(t, c.Add(stranger))
			assertConsistent(t, c)
			require.NoError(t, c.MarkForDelete(stranger))
			assertConsistent(t, c)
		},
		"create then remove": func(t *testing.T, _ *testbo.Env, c *collection.Collection[*testbo.ContactPerson], _ []*testbo.ContactPerson) {
			fresh, err := c.CreateBusinessObject()
			require.NoError(t, err)
			assertConsistent(t, c)
			require.NoError(t, c.Remove(fresh))
			assertConsistent(t, c)
		},
		"remove then add back": func(t *testing.T, _ *testbo.Env, c *collection.Collection[*testbo.ContactPerson], loaded []*testbo.ContactPerson) {
			require.NoError(t, c.Remove(loaded[0]))
			assertConsistent(t, c)
			require.NoError(t, c.Add(loaded[0]))
			assertConsistent(t, c)
		},
		"mark for delete then remove another": func(t *testing.T, _ *testbo.Env, c *collection.Collection[*testbo.ContactPerson], loaded []*testbo.ContactPerson) {
			require.NoError(t, c.MarkForDelete(loaded[1]))
			assertConsistent(t, c)
			require.NoError(t, c.Remove(loaded[0]))
			assertConsistent(t, c)
		},
	}

	for name, run := range sequences {
		t.Run(name, func(t *testing.T) {
			_, env, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 31))
			require.NoError(t, c.Load(context.Background(), nil, "Surname"))
			before := c.Items()
			persisted := c.PersistedBusinessObjects()

			run(t, env, c, before)
			require.NoError(t, c.RestoreAll())

			assert.Equal(t, before, c.Items())
			assert.Equal(t, persisted, c.PersistedBusinessObjects())
			assert.Empty(t, c.CreatedBusinessObjects())
			assert.Empty(t, c.AddedBusinessObjects())
			assert.Empty(t, c.RemovedBusinessObjects())
			assert.Empty(t, c.MarkedForDeleteBusinessObjects())
			for _, p := range before {
				assert.False(t, p.Status().IsDeleted)
			}
			assertConsistent(t, c)
		})
	}
}

func TestAddedObjectMarkedForDelete(t *testing.T) {
	_, env, c := newPeople(t, personRow("p1", "Adams", 40))
	require.NoError(t, c.Load(context.Background(), nil, ""))
	before := c.Items()
	stranger := env.NewContactPerson()
	stranger.Load(personRow("p7", "Brown", 22))
	require.NoError(t, c.Add(stranger))

	require.NoError(t, c.MarkForDelete(stranger))
	assert.Equal(t, []*testbo.ContactPerson{stranger}, c.MarkedForDeleteBusinessObjects())
	assertConsistent(t, c)

	stranger.CancelEdits()
	assert.True(t, c.Contains(stranger))
	assert.Equal(t, []*testbo.ContactPerson{stranger}, c.AddedBusinessObjects())
	assert.Equal(t, before, c.PersistedBusinessObjects())
	assertConsistent(t, c)

	require.NoError(t, c.MarkForDelete(stranger))
	require.NoError(t, c.RestoreAll())
	assert.Equal(t, before, c.Items())
	assert.False(t, stranger.Status().IsDeleted)

	require.NoError(t, stranger.MarkForDelete())
	assert.Empty(t, c.MarkedForDeleteBusinessObjects(), "the collection no longer observes it")
	assertConsistent(t, c)
}

func TestSaveAll(t *testing.T) {
	s, _, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 31), personRow("p3", "Clark", 25))
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, nil, "Surname"))
	log := watch(c)

	items := c.Items()
	created, err := c.CreateBusinessObject()
	require.NoError(t, err)
	require.NoError(t, created.SetPropertyValue("Surname", "Dale"))
	require.NoError(t, items[1].SetPropertyValue("Surname", "Bishop"))
	require.NoError(t, c.MarkForDelete(items[2]))

	require.NoError(t, c.SaveAll(ctx))
	assert.Equal(t, 3, s.Count(testbo.ContactPersonDef))
	assert.Empty(t, c.CreatedBusinessObjects())
	assert.Empty(t, c.MarkedForDeleteBusinessObjects())
	assert.Len(t, c.PersistedBusinessObjects(), 3)
	assert.False(t, created.Status().IsNew)
	assert.False(t, items[1].Status().IsDirty)
	assert.True(t, items[2].Status().IsNew, "a deleted object is new again")
	assertConsistent(t, c)
	assert.Contains(t, *log, "updated:ContactPersonID=p2")

	reloaded := collection.New(collection.Options[*testbo.ContactPerson]{ClassDef: testbo.ContactPersonDef, Factory: testbo.NewEnv(s).ContactPeople(), Store: s})
	require.NoError(t, reloaded.Load(ctx, nil, "Surname"))
	assert.Equal(t, []string{"Adams", "Bishop", "Dale"}, surnames(reloaded.Items()))
}

func TestSaveSingleObject(t *testing.T) {
	s, _, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 31))
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, nil, "Surname"))

	adams, _ := c.At(0)
	baker, _ := c.At(1)
	require.NoError(t, adams.SetPropertyValue("Age", 41))
	require.NoError(t, baker.SetPropertyValue("Age", 32))

	require.NoError(t, c.Save(ctx, adams))
	assert.False(t, adams.Status().IsDirty)
	assert.True(t, baker.Status().IsDirty)

	res, err := s.Select(ctx, testbo.ContactPersonDef, storeAll())
	require.NoError(t, err)
	ages := map[any]any{}
	for _, r := range res.Rows {
		ages[r["ContactPersonID"]] = r["Age"]
	}
	assert.Equal(t, map[any]any{"p1": 41, "p2": 31}, ages)
}

func TestRefresh(t *testing.T) {
	s, _, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 31))
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, nil, "Surname"))
	adams, _ := c.At(0)
	baker, _ := c.At(1)

	require.NoError(t, adams.SetPropertyValue("Surname", "Local"))
	require.NoError(t, s.Update(ctx, testbo.ContactPersonDef, bo.Row{"ContactPersonID": "p1"}, personRow("p1", "Remote", 40)))
	require.NoError(t, s.Update(ctx, testbo.ContactPersonDef, bo.Row{"ContactPersonID": "p2"}, personRow("p2", "Barker", 31)))

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, "Local", adams.Surname(), "dirty objects are not overwritten")
	assert.Equal(t, "Barker", baker.Surname())
	assert.Same(t, baker, c.Items()[0], "loaded rows follow the load order")

	require.NoError(t, s.Delete(ctx, testbo.ContactPersonDef, bo.Row{"ContactPersonID": "p1"}))
	require.NoError(t, s.Delete(ctx, testbo.ContactPersonDef, bo.Row{"ContactPersonID": "p2"}))
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, []*testbo.ContactPerson{adams}, c.Items(), "dirty members stay, clean ones leave")
	assertConsistent(t, c)
}

func TestRefreshKeepsPendingChanges(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 31))
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, nil, "Surname"))
	adams, _ := c.At(0)
	baker, _ := c.At(1)

	created, err := c.CreateBusinessObject()
	require.NoError(t, err)
	require.NoError(t, c.Remove(adams))
	require.NoError(t, c.MarkForDelete(baker))

	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, []*testbo.ContactPerson{created}, c.Items())
	assert.Equal(t, []*testbo.ContactPerson{adams}, c.RemovedBusinessObjects())
	assert.Equal(t, []*testbo.ContactPerson{baker}, c.MarkedForDeleteBusinessObjects())
	assertConsistent(t, c)
}

func TestSortKeepsLoadOrder(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 22), personRow("p3", "Clark", 31))
	require.NoError(t, c.Load(context.Background(), nil, "Surname DESC"))
	assert.Equal(t, []string{"Clark", "Baker", "Adams"}, surnames(c.Items()))

	require.NoError(t, c.SortBy("Age", true))
	assert.Equal(t, []string{"Baker", "Clark", "Adams"}, surnames(c.Items()))

	c.Sort()
	assert.Equal(t, []string{"Clark", "Baker", "Adams"}, surnames(c.Items()))
	assert.Equal(t, "Surname DESC", c.SelectQuery().OrderCriteria.String())

	err := c.SortBy("Shoe", true)
	assert.True(t, errs.IsDeveloper(err))
	err = c.SortBy("", true)
	assert.True(t, errs.IsDeveloper(err))
}

func TestFindByPreviousKey(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Adams", 40))
	require.NoError(t, c.LoadAll(context.Background()))
	log := watch(c)

	p, _ := c.At(0)
	old := p.Key()
	require.NoError(t, p.SetPropertyValue("ContactPersonID", "p9"))
	assert.Equal(t, bo.Key("ContactPersonID=p9"), p.Key())
	assert.Equal(t, old, p.PreviousKey())

	found, ok := c.Find(old)
	require.True(t, ok)
	assert.Same(t, p, found)
	found, ok = c.Find(p.Key())
	require.True(t, ok)
	assert.Same(t, p, found)

	assert.Equal(t, []string{"id_updated:ContactPersonID=p9"}, *log)
}

func TestFindFunc(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Adams", 40), personRow("p2", "Baker", 22), personRow("p3", "Clark", 31))
	require.NoError(t, c.Load(context.Background(), nil, "Surname"))

	p, ok := c.FindFunc(func(p *testbo.ContactPerson) bool { return p.Value("Age") == 22 })
	require.True(t, ok)
	assert.Equal(t, "Baker", p.Surname())
	assert.Equal(t, 1, c.IndexOf(p))

	older := c.FindAll(func(p *testbo.ContactPerson) bool { return p.Value("Age").(int) > 30 })
	assert.Equal(t, []string{"Adams", "Clark"}, surnames(older))

	var visited []string
	c.ForEach(func(p *testbo.ContactPerson) {
		visited = append(visited, p.Surname())
		require.NoError(t, c.Remove(p))
	})
	assert.Equal(t, []string{"Adams", "Baker", "Clark"}, visited)
	assert.Zero(t, c.Count())
}

func TestClear(t *testing.T) {
	_, _, c := newPeople(t, personRow("p1", "Adams", 40))
	require.NoError(t, c.LoadAll(context.Background()))
	p, _ := c.At(0)
	subscribers := p.SubscriberCount()

	c.Clear()
	assert.Zero(t, c.Count())
	assert.Empty(t, c.PersistedBusinessObjects())
	assert.Zero(t, c.TotalCountAvailableForPaging())
	_, ok := c.TimeLastLoaded()
	assert.False(t, ok)
	assert.Equal(t, subscribers-1, p.SubscriberCount())
}

func TestCreateWithAlternateClassDef(t *testing.T) {
	env := testbo.NewEnv(nil)
	employee := &bo.ClassDef{
		ClassName:  "Employee",
		Properties: testbo.ContactPersonDef.Properties,
		PrimaryKey: testbo.ContactPersonDef.PrimaryKey,
	}
	people := collection.New(collection.Options[*testbo.ContactPerson]{ClassDef: employee, Factory: env.ContactPeople()})
	_, err := people.CreateBusinessObject()
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Equal(t, "the business object type for Employee does not have a constructor accepting a ClassDef", err.Error())

	vehicle := &bo.ClassDef{ClassName: "Vehicle", Properties: testbo.CarDef.Properties, PrimaryKey: testbo.CarDef.PrimaryKey}
	cars := collection.New(collection.Options[*testbo.Car]{ClassDef: vehicle, Factory: env.Cars()})
	car, err := cars.CreateBusinessObject()
	require.NoError(t, err)
	assert.Same(t, vehicle, car.ClassDef())
	assert.Equal(t, []*testbo.Car{car}, cars.CreatedBusinessObjects())
}
