// Package store defines the persistence and load contract consumed by
// collections and the committer.
//
// Implementations live in sub-packages: memory (in-process, transactional),
// gormstore (SQL through GORM) and cached (redis read-through decorator).
package store

import (
	"context"
	"errors"
	"slices"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/criteria"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/order"
)

// ErrDuplicateKey is returned by Insert when the identity already exists
var ErrDuplicateKey = errors.New("duplicate key")

// NoLimit is the Limit value that returns every matching row
const NoLimit = -1

// Query selects rows of one class
type Query struct {
	Criteria *criteria.Criteria
	OrderBy  *order.Criteria

	// First is the zero-based index of the first row returned
	First int

	// Limit caps the number of rows returned. Negative means no limit and
	// zero returns no rows; Result.Total is reported either way.
	Limit int
}

// All returns a query for every row matching crit
func All(crit *criteria.Criteria, orderBy *order.Criteria) Query {
	return Query{Criteria: crit, OrderBy: orderBy, Limit: NoLimit}
}

// Validate checks the paging window
func (q Query) Validate() error {
	if q.First < 0 {
		return errs.IndexRange("load", "FirstRecordToLoad should not be negative.")
	}
	return nil
}

// Result holds the selected window and the number of rows matching the
// criteria regardless of the window
type Result struct {
	Rows  []bo.Row `msgpack:"rows"`
	Total int      `msgpack:"total"`
}

// DataStore is the persistence collaborator
type DataStore interface {
	Select(ctx context.Context, def *bo.ClassDef, q Query) (Result, error)
	Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error

	// Update replaces the row identified by key, key holding the identity
	// values as last persisted
	Update(ctx context.Context, def *bo.ClassDef, key bo.Row, row bo.Row) error
	Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error
}

// Transactional is implemented by stores able to run several writes
// atomically. fn receives a store bound to the transaction.
type Transactional interface {
	WithinTx(ctx context.Context, fn func(tx DataStore) error) error
}

// Apply evaluates q against rows in memory: filter, stable sort, then window
func Apply(rows []bo.Row, q Query) Result {
	matched := make([]bo.Row, 0, len(rows))
	for _, r := range rows {
		if q.Criteria.Match(r) {
			matched = append(matched, r)
		}
	}
	if !q.OrderBy.IsEmpty() {
		slices.SortStableFunc(matched, func(a, b bo.Row) int {
			return q.OrderBy.Compare(a, b)
		})
	}
	return Result{Rows: Window(matched, q.First, q.Limit), Total: len(matched)}
}

// Window returns rows[first:first+limit] clamped to the slice bounds
func Window(rows []bo.Row, first, limit int) []bo.Row {
	first = max(first, 0)
	if first >= len(rows) || limit == 0 {
		return []bo.Row{}
	}
	end := len(rows)
	if limit > 0 && first+limit < end {
		end = first + limit
	}
	return rows[first:end]
}
