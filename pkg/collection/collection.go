// Package collection tracks in-memory changes to sets of business objects
// against a DataStore.
//
// A Collection classifies every object it holds into membership sets:
//
//   - Current: the visible, ordered members
//   - Created: new objects added or created here, not yet saved
//   - Added: already persisted objects added here
//   - Persisted: membership as of the last load or save, the restore point
//   - Removed: persisted members taken out of Current
//   - MarkedForDelete: members that will be deleted by the next save
//
// Membership follows object lifecycle events, so an object shared by several
// collections keeps every one of them consistent. RelatedCollection adds the
// rules of a relationship on top of the same engine.
package collection

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/criteria"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/order"
	"github.com/ammar0144/bo4go/pkg/persist"
	"github.com/ammar0144/bo4go/pkg/relationship"
	"github.com/ammar0144/bo4go/pkg/store"
)

const indexOutOfRange = "Index was out of range. Must be non-negative and less than the size of the collection."

// Saver persists objects together with their pending children
type Saver interface {
	Save(ctx context.Context, objs ...bo.BusinessObject) error
}

// Options configures a collection
type Options[T bo.BusinessObject] struct {
	// ClassDef of the members; defaults to the factory's class definition.
	// An alternate definition requires Factory.NewWithDef.
	ClassDef *bo.ClassDef

	Factory bo.Factory[T]

	// Store loads members; required by the load operations
	Store store.DataStore

	// Saver persists members; defaults to a persist.Committer on Store
	Saver Saver

	Logger *zap.Logger

	// DefaultLimit caps Load and LoadAll; zero or negative means no limit
	DefaultLimit int

	// Now stamps TimeLastLoaded; defaults to time.Now
	Now func() time.Time
}

// SelectQuery is the query a collection re-runs on Refresh
type SelectQuery struct {
	Criteria          *criteria.Criteria
	OrderCriteria     *order.Criteria
	FirstRecordToLoad int
	Limit             int
}

// detachMode says what happens to a child's link to the owner when it
// leaves a related collection
type detachMode int

const (
	// detachByAction applies the relationship's RemoveChildAction
	detachByAction detachMode = iota
	// detachDereference always clears the link
	detachDereference
	// detachKeep leaves the link as it is
	detachKeep
)

// restoreKind says which set RestoreAll took an object from
type restoreKind int

const (
	restoreCreated restoreKind = iota
	restoreAdded
	restoreRemoved
)

// hooks let a related collection apply relationship rules at fixed points of
// the membership engine
type hooks[T bo.BusinessObject] interface {
	beforeAdd(obj T) error
	beforeRemove(obj T) error
	afterRemove(obj T, mode detachMode) error
	afterRestore(obj T, kind restoreKind) error
	afterLoad(obj T)
}

// Collection is the membership engine for objects of type T. It is not safe
// for concurrent use.
type Collection[T bo.BusinessObject] struct {
	def          *bo.ClassDef
	factory      bo.Factory[T]
	store        store.DataStore
	saver        Saver
	logger       *zap.Logger
	defaultLimit int
	now          func() time.Time

	sender  any
	relName string
	hooks   hooks[T]

	current         *objectSet[T]
	created         *objectSet[T]
	added           *objectSet[T]
	persisted       *objectSet[T]
	removed         *objectSet[T]
	markedForDelete *objectSet[T]

	// addedThenMarked holds marked-for-delete members that were Added, not
	// loaded, when they were marked
	addedThenMarked *objectSet[T]

	keys   map[bo.Key]T
	keysOf map[*bo.Base][]bo.Key
	subs   map[*bo.Base]bo.Subscription

	listeners listeners[T]

	query      SelectQuery
	total      int
	lastLoaded time.Time
	loaded     bool
}

// New creates an empty collection
func New[T bo.BusinessObject](opts Options[T]) *Collection[T] {
	c := &Collection[T]{}
	c.init(opts)
	c.sender = c
	return c
}

func (c *Collection[T]) init(opts Options[T]) {
	c.def = opts.ClassDef
	if c.def == nil {
		c.def = opts.Factory.DefaultClassDef()
	}
	c.factory = opts.Factory
	c.store = opts.Store
	c.logger = opts.Logger
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.saver = opts.Saver
	if c.saver == nil && c.store != nil {
		c.saver = persist.NewCommitter(c.store, c.logger)
	}
	c.defaultLimit = opts.DefaultLimit
	if c.defaultLimit <= 0 {
		c.defaultLimit = store.NoLimit
	}
	c.now = opts.Now
	if c.now == nil {
		c.now = time.Now
	}

	c.current = newObjectSet[T]()
	c.created = newObjectSet[T]()
	c.added = newObjectSet[T]()
	c.persisted = newObjectSet[T]()
	c.removed = newObjectSet[T]()
	c.markedForDelete = newObjectSet[T]()
	c.addedThenMarked = newObjectSet[T]()
	c.keys = map[bo.Key]T{}
	c.keysOf = map[*bo.Base][]bo.Key{}
	c.subs = map[*bo.Base]bo.Subscription{}
	c.query = SelectQuery{OrderCriteria: order.New(), Limit: store.NoLimit}
}

// ClassDef returns the class definition of the members
func (c *Collection[T]) ClassDef() *bo.ClassDef {
	return c.def
}

func (c *Collection[T]) className() string {
	if c.def == nil {
		return ""
	}
	return c.def.ClassName
}

// On registers a handler for one kind of collection event
func (c *Collection[T]) On(kind EventKind, h func(Event[T])) Subscription {
	return c.listeners.on(kind, h)
}

// Off removes a handler
func (c *Collection[T]) Off(s Subscription) {
	c.listeners.off(s)
}

func (c *Collection[T]) fire(kind EventKind, obj T) {
	c.listeners.fire(Event[T]{Kind: kind, Sender: c.sender, Object: obj})
}

// Add adds objects in order, stopping at the first failure. Adding a member
// again is a no-op. New objects join Created, persisted ones join Added and
// removed members return to Current.
func (c *Collection[T]) Add(objs ...T) error {
	for _, obj := range objs {
		if err := c.addOne(obj); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection[T]) addOne(obj T) error {
	if isNil(obj) {
		return errs.Developer(c.className(), c.relName, "add",
			"a %s could not be added since the business object is null", c.className())
	}
	if c.current.has(obj) {
		return nil
	}
	if c.markedForDelete.has(obj) {
		return errs.Developer(c.className(), c.relName, "add",
			"the %s identified by %s could not be added since it is marked for delete", c.className(), obj.Core().Key())
	}
	if c.hooks != nil {
		if err := c.hooks.beforeAdd(obj); err != nil {
			return err
		}
	}
	c.insert(obj)
	c.fire(BusinessObjectAdded, obj)
	return nil
}

func (c *Collection[T]) insert(obj T) {
	switch {
	case c.removed.remove(obj):
	case obj.Core().Status().IsNew:
		c.created.add(obj)
	case c.persisted.has(obj):
	default:
		c.added.add(obj)
	}
	c.current.add(obj)
	c.track(obj)
}

// CreateBusinessObject instantiates a new member and appends it to Current
func (c *Collection[T]) CreateBusinessObject() (T, error) {
	var zero T
	obj, err := c.factory.Create(c.def)
	if err != nil {
		return zero, err
	}
	if err := c.addOne(obj); err != nil {
		return zero, err
	}
	return obj, nil
}

// Remove takes obj out of Current. A new object is dropped without residue;
// a persisted one is kept in Removed until saved or restored.
func (c *Collection[T]) Remove(obj T) error {
	return c.removeOne(obj, detachByAction, true)
}

// RemoveAt removes the member at index i
func (c *Collection[T]) RemoveAt(i int) error {
	if i < 0 || i >= c.current.len() {
		return errs.IndexRange("remove_at", indexOutOfRange)
	}
	return c.Remove(c.current.items[i])
}

func (c *Collection[T]) removeOne(obj T, mode detachMode, check bool) error {
	if isNil(obj) {
		return errs.Developer(c.className(), c.relName, "remove",
			"a %s could not be removed since the business object is null", c.className())
	}
	if !c.current.has(obj) {
		return nil
	}
	if check && c.hooks != nil {
		if err := c.hooks.beforeRemove(obj); err != nil {
			return err
		}
	}
	c.detach(obj)
	if c.hooks != nil {
		if err := c.hooks.afterRemove(obj, mode); err != nil {
			return err
		}
	}
	c.fire(BusinessObjectRemoved, obj)
	return nil
}

func (c *Collection[T]) detach(obj T) {
	c.current.remove(obj)
	switch {
	case c.created.remove(obj), c.added.remove(obj):
		c.untrack(obj)
	default:
		c.removed.add(obj)
	}
}

// MarkForDelete flags a member for deletion on the next save. New objects
// cannot be marked and must be removed instead.
func (c *Collection[T]) MarkForDelete(obj T) error {
	if isNil(obj) {
		return errs.Developer(c.className(), c.relName, "mark_for_delete",
			"a %s could not be marked for delete since the business object is null", c.className())
	}
	if c.markedForDelete.has(obj) {
		return nil
	}
	if !c.current.has(obj) {
		return errs.Developer(c.className(), c.relName, "mark_for_delete",
			"the %s identified by %s could not be marked for delete since it is not part of the collection", c.className(), obj.Core().Key())
	}
	return obj.Core().MarkForDelete()
}

// MarkForDeleteAt marks the member at index i for delete
func (c *Collection[T]) MarkForDeleteAt(i int) error {
	if i < 0 || i >= c.current.len() {
		return errs.IndexRange("mark_for_delete_at", indexOutOfRange)
	}
	return c.MarkForDelete(c.current.items[i])
}

// Contains reports whether obj is a current member
func (c *Collection[T]) Contains(obj T) bool {
	return !isNil(obj) && c.current.has(obj)
}

// Find looks a current member up by identity. Identities an object held
// before an identity change still resolve to it.
func (c *Collection[T]) Find(key bo.Key) (T, bool) {
	obj, ok := c.keys[key]
	if !ok || !c.current.has(obj) {
		var zero T
		return zero, false
	}
	return obj, true
}

// FindFunc returns the first current member matching pred
func (c *Collection[T]) FindFunc(pred func(T) bool) (T, bool) {
	for _, obj := range c.current.slice() {
		if pred(obj) {
			return obj, true
		}
	}
	var zero T
	return zero, false
}

// FindAll returns every current member matching pred
func (c *Collection[T]) FindAll(pred func(T) bool) []T {
	var out []T
	for _, obj := range c.current.slice() {
		if pred(obj) {
			out = append(out, obj)
		}
	}
	return out
}

// ForEach calls fn for every current member. fn may change the collection.
func (c *Collection[T]) ForEach(fn func(T)) {
	for _, obj := range c.current.slice() {
		fn(obj)
	}
}

// At returns the member at index i
func (c *Collection[T]) At(i int) (T, error) {
	if i < 0 || i >= c.current.len() {
		var zero T
		return zero, errs.IndexRange("at", indexOutOfRange)
	}
	return c.current.items[i], nil
}

// IndexOf returns the position of obj in Current or -1
func (c *Collection[T]) IndexOf(obj T) int {
	if isNil(obj) {
		return -1
	}
	return c.current.indexOf(obj)
}

// Count returns the number of current members
func (c *Collection[T]) Count() int {
	return c.current.len()
}

// Items returns the current members in order
func (c *Collection[T]) Items() []T {
	return c.current.slice()
}

// CreatedBusinessObjects returns the unsaved objects created or added here
func (c *Collection[T]) CreatedBusinessObjects() []T {
	return c.created.slice()
}

// AddedBusinessObjects returns the persisted objects added here
func (c *Collection[T]) AddedBusinessObjects() []T {
	return c.added.slice()
}

// PersistedBusinessObjects returns the membership as of the last load or save
func (c *Collection[T]) PersistedBusinessObjects() []T {
	return c.persisted.slice()
}

// RemovedBusinessObjects returns the persisted members removed from Current
func (c *Collection[T]) RemovedBusinessObjects() []T {
	return c.removed.slice()
}

// MarkedForDeleteBusinessObjects returns the members pending deletion
func (c *Collection[T]) MarkedForDeleteBusinessObjects() []T {
	return c.markedForDelete.slice()
}

// Clear empties every set, forgets the last load and stops observing all
// members
func (c *Collection[T]) Clear() {
	for core, sub := range c.subs {
		core.Unsubscribe(sub)
	}
	c.subs = map[*bo.Base]bo.Subscription{}
	c.keys = map[bo.Key]T{}
	c.keysOf = map[*bo.Base][]bo.Key{}
	for _, s := range []*objectSet[T]{c.current, c.created, c.added, c.persisted, c.removed, c.markedForDelete, c.addedThenMarked} {
		s.clear()
	}
	c.total = 0
	c.lastLoaded = time.Time{}
	c.loaded = false
}

// RestoreAll discards pending membership changes: created and added objects
// leave, removed ones return and marked-for-delete ones are restored through
// their own CancelEdits. Objects marked for delete after being added leave
// as added objects do. Current ends up in persisted order.
func (c *Collection[T]) RestoreAll() error {
	var errList []error
	for _, obj := range c.created.slice() {
		c.current.remove(obj)
		c.created.remove(obj)
		c.untrack(obj)
		errList = append(errList, c.afterRestore(obj, restoreCreated))
		c.fire(BusinessObjectRemoved, obj)
	}
	for _, obj := range c.added.slice() {
		c.current.remove(obj)
		c.added.remove(obj)
		c.untrack(obj)
		errList = append(errList, c.afterRestore(obj, restoreAdded))
		c.fire(BusinessObjectRemoved, obj)
	}
	for _, obj := range c.removed.slice() {
		c.removed.remove(obj)
		c.current.add(obj)
		errList = append(errList, c.afterRestore(obj, restoreRemoved))
		c.fire(BusinessObjectAdded, obj)
	}
	for _, obj := range c.addedThenMarked.slice() {
		c.markedForDelete.remove(obj)
		c.addedThenMarked.remove(obj)
		c.persisted.remove(obj)
		c.untrack(obj)
		errList = append(errList, c.afterRestore(obj, restoreAdded))
		obj.Core().CancelEdits()
	}
	for _, obj := range c.markedForDelete.slice() {
		obj.Core().CancelEdits()
	}

	c.restoreOrder()
	return errors.Join(errList...)
}

// restoreOrder puts persisted members of Current back in persisted order,
// followed by the others
func (c *Collection[T]) restoreOrder() {
	ordered := make([]T, 0, c.current.len())
	for _, obj := range c.persisted.items {
		if c.current.has(obj) {
			ordered = append(ordered, obj)
		}
	}
	for _, obj := range c.current.items {
		if !c.persisted.has(obj) {
			ordered = append(ordered, obj)
		}
	}
	c.current.reset(ordered)
}

func (c *Collection[T]) afterRestore(obj T, kind restoreKind) error {
	if c.hooks == nil {
		return nil
	}
	return c.hooks.afterRestore(obj, kind)
}

// SaveAll persists created, added, dirty, removed and marked-for-delete
// members in that order, deletions running last
func (c *Collection[T]) SaveAll(ctx context.Context) error {
	if c.saver == nil {
		return errs.Configuration(c.className(), "save", "no saver configured for the %s collection", c.className())
	}
	var objs []bo.BusinessObject
	for _, obj := range c.created.items {
		objs = append(objs, obj)
	}
	for _, obj := range c.added.items {
		objs = append(objs, obj)
	}
	for _, obj := range c.current.items {
		if !c.created.has(obj) && !c.added.has(obj) && obj.Core().Status().IsDirty {
			objs = append(objs, obj)
		}
	}
	for _, obj := range c.removed.items {
		objs = append(objs, obj)
	}
	for _, obj := range c.markedForDelete.items {
		objs = append(objs, obj)
	}
	if len(objs) == 0 {
		return nil
	}

	created, added, removed, deleted := c.created.len(), c.added.len(), c.removed.len(), c.markedForDelete.len()
	if err := c.saver.Save(ctx, objs...); err != nil {
		return err
	}
	c.settleRemoved()
	c.logger.Debug("collection saved",
		zap.String("class", c.className()),
		zap.Int("created", created),
		zap.Int("added", added),
		zap.Int("removed", removed),
		zap.Int("deleted", deleted))
	return nil
}

// Save persists a single member and reclassifies only that object
func (c *Collection[T]) Save(ctx context.Context, obj T) error {
	if isNil(obj) {
		return errs.Developer(c.className(), c.relName, "save",
			"a %s could not be saved since the business object is null", c.className())
	}
	if c.saver == nil {
		return errs.Configuration(c.className(), "save", "no saver configured for the %s collection", c.className())
	}
	if err := c.saver.Save(ctx, obj); err != nil {
		return err
	}
	if c.removed.has(obj) && !obj.Core().Status().IsDirty {
		c.settle(obj)
	}
	return nil
}

// settleRemoved forgets removed members that needed no write
func (c *Collection[T]) settleRemoved() {
	for _, obj := range c.removed.slice() {
		if !obj.Core().Status().IsDirty {
			c.settle(obj)
		}
	}
}

func (c *Collection[T]) settle(obj T) {
	c.removed.remove(obj)
	c.persisted.remove(obj)
	c.untrack(obj)
}

func (c *Collection[T]) track(obj T) {
	core := obj.Core()
	if _, ok := c.subs[core]; !ok {
		c.subs[core] = core.Subscribe(c.onObjectEvent)
	}
	c.index(obj)
}

func (c *Collection[T]) untrack(obj T) {
	core := obj.Core()
	if sub, ok := c.subs[core]; ok {
		core.Unsubscribe(sub)
		delete(c.subs, core)
	}
	for _, k := range c.keysOf[core] {
		if owner, ok := c.keys[k]; ok && owner.Core() == core {
			delete(c.keys, k)
		}
	}
	delete(c.keysOf, core)
}

func (c *Collection[T]) tracked(obj T) bool {
	_, ok := c.subs[obj.Core()]
	return ok
}

func (c *Collection[T]) index(obj T) {
	core := obj.Core()
	k := core.Key()
	c.keys[k] = obj
	for _, existing := range c.keysOf[core] {
		if existing == k {
			return
		}
	}
	c.keysOf[core] = append(c.keysOf[core], k)
}

func (c *Collection[T]) onObjectEvent(e bo.Event) {
	obj, ok := e.Object.(T)
	if !ok {
		return
	}
	switch e.Type {
	case bo.EventSaved:
		c.onSaved(obj)
	case bo.EventDeleted:
		c.onDeleted(obj)
	case bo.EventIDUpdated:
		c.index(obj)
		if c.current.has(obj) {
			c.fire(BusinessObjectIDUpdated, obj)
		}
	case bo.EventMarkedForDelete:
		c.onMarkedForDelete(obj)
	case bo.EventRestored:
		c.onRestored(obj)
	}
}

func (c *Collection[T]) onSaved(obj T) {
	switch {
	case c.created.remove(obj), c.added.remove(obj):
		c.persisted.add(obj)
	case c.removed.has(obj):
		c.settle(obj)
	case c.current.has(obj):
		c.fire(BusinessObjectUpdated, obj)
	}
}

func (c *Collection[T]) onDeleted(obj T) {
	for _, s := range []*objectSet[T]{c.current, c.created, c.added, c.persisted, c.removed, c.markedForDelete, c.addedThenMarked} {
		s.remove(obj)
	}
	c.untrack(obj)
}

func (c *Collection[T]) onMarkedForDelete(obj T) {
	wasCurrent := c.current.remove(obj)
	if c.added.remove(obj) {
		c.persisted.add(obj)
		c.addedThenMarked.add(obj)
	}
	c.removed.remove(obj)
	c.markedForDelete.add(obj)
	if wasCurrent {
		c.fire(BusinessObjectRemoved, obj)
	}
}

// onRestored undoes a mark for delete made on the object itself; a member
// that was Added goes back to Added
func (c *Collection[T]) onRestored(obj T) {
	if !c.markedForDelete.remove(obj) {
		return
	}
	if c.addedThenMarked.remove(obj) {
		c.persisted.remove(obj)
		c.added.add(obj)
	}
	c.current.add(obj)
	c.fire(BusinessObjectAdded, obj)
}

func isNil[T bo.BusinessObject](obj T) bool {
	return relationship.IsNil(obj)
}
