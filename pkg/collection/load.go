package collection

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/criteria"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/order"
	"github.com/ammar0144/bo4go/pkg/store"
)

// LoadAll loads every stored object of the class
func (c *Collection[T]) LoadAll(ctx context.Context) error {
	return c.Load(ctx, nil, "")
}

// Load loads the objects matching crit in the order given by orderBy
// ("Surname ASC, Car.Make DESC")
func (c *Collection[T]) Load(ctx context.Context, crit *criteria.Criteria, orderBy string) error {
	_, err := c.LoadWithLimit(ctx, crit, orderBy, 0, c.defaultLimit)
	return err
}

// LoadWithLimit loads a window of the matching objects and returns the
// number of stored objects matching crit. A negative limit loads every row
// from first on; zero loads none. The query is kept for Refresh and its
// order for Sort.
func (c *Collection[T]) LoadWithLimit(ctx context.Context, crit *criteria.Criteria, orderBy string, first, limit int) (int, error) {
	if first < 0 {
		return 0, errs.IndexRange("load", "FirstRecordToLoad should not be negative.")
	}
	oc, err := order.Parse(orderBy)
	if err != nil {
		return 0, err
	}
	c.query = SelectQuery{Criteria: crit, OrderCriteria: oc, FirstRecordToLoad: first, Limit: limit}
	if err := c.Refresh(ctx); err != nil {
		return 0, err
	}
	return c.total, nil
}

// Refresh re-runs the last query. Dirty members are never overwritten and
// stay even when no longer returned; clean members that are not returned
// leave. Removed and marked-for-delete members stay out of Current. Created
// and added members are kept after the loaded ones.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	if c.store == nil {
		return errs.Configuration(c.className(), "load", "no data store configured for the %s collection", c.className())
	}
	q := store.Query{
		Criteria: c.query.Criteria,
		OrderBy:  c.query.OrderCriteria,
		First:    c.query.FirstRecordToLoad,
		Limit:    c.query.Limit,
	}
	if err := q.Validate(); err != nil {
		return err
	}
	res, err := c.store.Select(ctx, c.def, q)
	if err != nil {
		return errs.Persistence(c.className(), "load", err)
	}
	if err := c.reconcile(res.Rows); err != nil {
		return err
	}
	c.total = res.Total
	c.lastLoaded = c.now()
	c.loaded = true

	c.logger.Debug("collection loaded",
		zap.String("class", c.className()),
		zap.Stringer("criteria", c.query.Criteria),
		zap.Stringer("order", c.query.OrderCriteria),
		zap.Int("first", c.query.FirstRecordToLoad),
		zap.Int("limit", c.query.Limit),
		zap.Int("loaded", len(res.Rows)),
		zap.Int("total", res.Total))
	return nil
}

func (c *Collection[T]) reconcile(rows []bo.Row) error {
	seen := map[*bo.Base]bool{}
	var loaded []T
	for _, row := range rows {
		obj, ok := c.keys[bo.KeyOf(c.def, row)]
		if ok && c.tracked(obj) {
			if c.removed.has(obj) || c.markedForDelete.has(obj) {
				continue
			}
			if !obj.Core().Status().IsDirty {
				obj.Core().Load(row)
				c.index(obj)
			}
		} else {
			created, err := c.factory.Create(c.def)
			if err != nil {
				return err
			}
			obj = created
			obj.Core().Load(row)
			c.track(obj)
			if c.hooks != nil {
				c.hooks.afterLoad(obj)
			}
		}
		if seen[obj.Core()] {
			continue
		}
		seen[obj.Core()] = true
		loaded = append(loaded, obj)
	}

	var current, persisted []T
	for _, obj := range loaded {
		if c.created.has(obj) || c.added.has(obj) {
			continue
		}
		current = append(current, obj)
		persisted = append(persisted, obj)
	}
	for _, obj := range c.persisted.slice() {
		if seen[obj.Core()] {
			continue
		}
		switch {
		case c.removed.has(obj), c.markedForDelete.has(obj):
			persisted = append(persisted, obj)
		case c.current.has(obj) && obj.Core().Status().IsDirty:
			persisted = append(persisted, obj)
			current = append(current, obj)
		default:
			c.untrack(obj)
		}
	}
	for _, obj := range c.current.items {
		if c.created.has(obj) || c.added.has(obj) {
			current = append(current, obj)
		}
	}
	c.current.reset(current)
	c.persisted.reset(persisted)
	return nil
}

// Sort reorders Current by the order criteria of the last load. Orders
// applied with SortBy or SortWith do not replace it.
func (c *Collection[T]) Sort() {
	if c.query.OrderCriteria.IsEmpty() {
		return
	}
	c.SortWith(c.query.OrderCriteria)
}

// SortBy reorders Current by one property, which may be a dotted path
// through single relationships
func (c *Collection[T]) SortBy(prop string, ascending bool) error {
	if prop == "" {
		return errs.Developer(c.className(), c.relName, "sort", "a property name is required to sort the %s collection", c.className())
	}
	if !strings.Contains(prop, ".") {
		if _, ok := c.def.Property(prop); !ok {
			return errs.Developer(c.className(), c.relName, "sort", "property %s is not defined on %s", prop, c.className())
		}
	}
	dir := order.Ascending
	if !ascending {
		dir = order.Descending
	}
	c.SortWith(order.New().Add(prop, dir))
	return nil
}

// SortWith reorders Current by oc using a stable sort
func (c *Collection[T]) SortWith(oc *order.Criteria) {
	items := c.current.slice()
	slices.SortStableFunc(items, func(a, b T) int {
		return oc.Compare(a, b)
	})
	c.current.reset(items)
}

// TimeLastLoaded returns when the collection was last loaded or refreshed;
// false before the first load and after Clear
func (c *Collection[T]) TimeLastLoaded() (time.Time, bool) {
	return c.lastLoaded, c.loaded
}

// TotalCountAvailableForPaging returns the number of stored objects matching
// the last query, regardless of its window
func (c *Collection[T]) TotalCountAvailableForPaging() int {
	return c.total
}

// SelectQuery returns the query Refresh re-runs
func (c *Collection[T]) SelectQuery() SelectQuery {
	return c.query
}
