package persist

import (
	"context"
	"errors"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/logger"
	"github.com/ammar0144/bo4go/pkg/store"
	"github.com/ammar0144/bo4go/pkg/store/memory"
)

var (
	ownerDef = &bo.ClassDef{
		ClassName:  "Owner",
		Properties: []bo.PropDef{{Name: "OwnerID", AutoKey: true}, {Name: "Name"}},
		PrimaryKey: []string{"OwnerID"},
	}
	childDef = &bo.ClassDef{
		ClassName:  "Child",
		Properties: []bo.PropDef{{Name: "ChildID", AutoKey: true}, {Name: "OwnerID"}},
		PrimaryKey: []string{"ChildID"},
	}
)

type object struct{ bo.Base }

func newObject(def *bo.ClassDef) *object {
	o := &object{}
	o.Init(o, def)
	return o
}

type children struct {
	items []bo.BusinessObject
}

func (c *children) RelationshipName() string { return "Children" }
func (c *children) IsDirty() bool {
	for _, i := range c.items {
		if i.Core().Status().IsNew || i.Core().Status().IsDirty {
			return true
		}
	}
	return false
}
func (c *children) PendingChildren() []bo.BusinessObject { return c.items }
func (c *children) CheckOwnerDelete() error              { return nil }
func (c *children) CascadeOwnerDelete() error {
	for _, i := range c.items {
		if err := i.Core().MarkForDelete(); err != nil {
			return err
		}
	}
	return nil
}
func (c *children) CancelEdits() {}

// recording wraps a store and records write order
type recording struct {
	store.DataStore
	ops  []string
	fail string
}

func (r *recording) Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error {
	r.ops = append(r.ops, "insert "+def.ClassName)
	if r.fail == "insert "+def.ClassName {
		return errors.New("disk full")
	}
	return r.DataStore.Insert(ctx, def, row)
}

func (r *recording) Update(ctx context.Context, def *bo.ClassDef, key, row bo.Row) error {
	r.ops = append(r.ops, "update "+def.ClassName)
	return r.DataStore.Update(ctx, def, key, row)
}

func (r *recording) Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error {
	r.ops = append(r.ops, "delete "+def.ClassName)
	return r.DataStore.Delete(ctx, def, key)
}

func ownerWithChildren(n int) (*object, *children) {
	owner := newObject(ownerDef)
	rel := &children{}
	for i := 0; i < n; i++ {
		child := newObject(childDef)
		_ = child.SetPropertyValue("OwnerID", owner.Value("OwnerID"))
		rel.items = append(rel.items, child)
	}
	owner.AddRelationship(rel)
	return owner, rel
}

func TestSaveInsertsOwnerThenChildren(t *testing.T) {
	ctx := context.Background()
	rec := &recording{DataStore: memory.New()}
	owner, rel := ownerWithChildren(2)
	require.True(t, owner.Status().IsNew)

	require.NoError(t, NewCommitter(rec, nil).Save(ctx, owner))

	assert.Equal(t, []string{"insert Owner", "insert Child", "insert Child"}, rec.ops)
	assert.False(t, owner.Status().IsNew)
	assert.False(t, owner.Status().IsDirty)
	for _, c := range rel.items {
		assert.False(t, c.Core().Status().IsNew)
	}
}

func TestSaveDeletesChildrenBeforeOwner(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	owner, _ := ownerWithChildren(1)
	require.NoError(t, NewCommitter(mem, nil).Save(ctx, owner))

	rec := &recording{DataStore: mem}
	require.NoError(t, owner.SetPropertyValue("Name", "renamed"))
	require.NoError(t, NewCommitter(rec, nil).Save(ctx, owner))
	assert.Equal(t, []string{"update Owner"}, rec.ops)

	rec.ops = nil
	require.NoError(t, owner.MarkForDelete())
	var deleted []bo.EventType
	owner.Subscribe(func(e bo.Event) { deleted = append(deleted, e.Type) })

	require.NoError(t, NewCommitter(rec, nil).Save(ctx, owner))
	assert.Equal(t, []string{"delete Child", "delete Owner"}, rec.ops)
	assert.Equal(t, []bo.EventType{bo.EventDeleted}, deleted)
	assert.Zero(t, mem.Count(ownerDef))
	assert.Zero(t, mem.Count(childDef))

	rec.ops = nil
	require.NoError(t, NewCommitter(rec, nil).Save(ctx, owner))
	assert.Empty(t, rec.ops, "deleted objects are not written twice")
}

func TestSaveCleanObjectIsSkipped(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	rec := &recording{DataStore: mem}
	obj := newObject(ownerDef)
	obj.Load(bo.Row{"OwnerID": "1", "Name": "x"})

	saved := 0
	obj.Subscribe(func(bo.Event) { saved++ })
	require.NoError(t, NewCommitter(rec, nil).Save(ctx, obj))
	assert.Empty(t, rec.ops)
	assert.Zero(t, saved)
}

func TestSaveFailureRollsBackAndNotifiesNobody(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	core, logs := observer.New(zapcore.WarnLevel)
	owner, rel := ownerWithChildren(1)

	failing := &failingTx{Store: mem, fail: "insert Child"}
	err := NewCommitter(failing, zap.New(core)).Save(ctx, owner)

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrPersistence)
	assert.Contains(t, err.Error(), "failed to insert Child")
	assert.True(t, owner.Status().IsNew)
	assert.True(t, rel.items[0].Core().Status().IsNew)
	assert.Zero(t, mem.Count(ownerDef), "owner insert rolled back")
	failed := logs.FilterMessage("commit failed").All()
	require.Len(t, failed, 1)
	saveID, ok := failed[0].ContextMap()["save_id"].(string)
	require.True(t, ok)
	_, err = ulid.Parse(saveID)
	assert.NoError(t, err)
}

func TestSaveKeepsCallerSaveID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	owner, _ := ownerWithChildren(1)
	ctx := logger.WithSaveID(context.Background(), "import-42")

	require.NoError(t, NewCommitter(memory.New(), zap.New(core)).Save(ctx, owner))

	done := logs.FilterMessage("commit succeeded").All()
	require.Len(t, done, 1)
	assert.Equal(t, "import-42", done[0].ContextMap()["save_id"])
}

type failingTx struct {
	*memory.Store
	fail string
}

func (f *failingTx) WithinTx(ctx context.Context, fn func(tx store.DataStore) error) error {
	return f.Store.WithinTx(ctx, func(tx store.DataStore) error {
		return fn(&recording{DataStore: tx, fail: f.fail})
	})
}
