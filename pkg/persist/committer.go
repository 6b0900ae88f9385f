// Package persist writes business object graphs to a DataStore.
package persist

import (
	"context"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/logger"
	"github.com/ammar0144/bo4go/pkg/store"
)

type opKind int

const (
	opInsert opKind = iota
	opUpdate
	opDelete
	opTouch
)

func (k opKind) String() string {
	switch k {
	case opInsert:
		return "insert"
	case opUpdate:
		return "update"
	case opDelete:
		return "delete"
	}
	return "touch"
}

type operation struct {
	kind opKind
	obj  bo.BusinessObject
}

// Committer saves objects together with the pending children of their
// relationships. Inserts and updates run in discovery order, owners before
// children; deletes run afterwards in reverse order, children before owners.
// When the store is transactional all writes share one transaction.
type Committer struct {
	store  store.DataStore
	logger *zap.Logger
}

// NewCommitter creates a committer writing to s
func NewCommitter(s store.DataStore, logger *zap.Logger) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{store: s, logger: logger}
}

// Save persists objs and their pending children, then notifies every
// written object through MarkPersisted. Nothing is notified on failure.
// Each save carries a save id in ctx, reused when the caller set one.
func (c *Committer) Save(ctx context.Context, objs ...bo.BusinessObject) error {
	plan := c.plan(objs)
	if len(plan) == 0 {
		return nil
	}
	if logger.SaveIDFromContext(ctx) == "" {
		ctx = logger.WithSaveID(ctx, ulid.Make().String())
	}
	log := logger.FromContext(ctx, c.logger)

	run := func(ds store.DataStore) error {
		for _, op := range plan {
			if err := c.apply(ctx, ds, op); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if tx, ok := c.store.(store.Transactional); ok {
		err = tx.WithinTx(ctx, run)
	} else {
		err = run(c.store)
	}
	if err != nil {
		log.Warn("commit failed", zap.Int("operations", len(plan)), zap.Error(err))
		return err
	}

	var inserted, updated, deleted int
	for _, op := range plan {
		switch op.kind {
		case opInsert:
			inserted++
		case opUpdate:
			updated++
		case opDelete:
			deleted++
		}
		op.obj.Core().MarkPersisted()
	}
	log.Debug("commit succeeded",
		zap.Int("inserted", inserted),
		zap.Int("updated", updated),
		zap.Int("deleted", deleted))
	return nil
}

// plan expands objs and orders the resulting operations
func (c *Committer) plan(objs []bo.BusinessObject) []operation {
	seen := map[*bo.Base]bool{}
	var discovered []bo.BusinessObject
	var visit func(obj bo.BusinessObject)
	visit = func(obj bo.BusinessObject) {
		if obj == nil || seen[obj.Core()] {
			return
		}
		seen[obj.Core()] = true
		discovered = append(discovered, obj)
		for _, r := range obj.Core().Relationships() {
			for _, child := range r.PendingChildren() {
				visit(child)
			}
		}
	}
	for _, obj := range objs {
		visit(obj)
	}

	var writes, deletes []operation
	for _, obj := range discovered {
		core := obj.Core()
		st := core.Status()
		switch {
		case st.IsDeleted && st.IsNew:
			// deletion already persisted
		case st.IsDeleted:
			deletes = append(deletes, operation{kind: opDelete, obj: obj})
		case st.IsNew:
			writes = append(writes, operation{kind: opInsert, obj: obj})
		case core.PropertiesDirty():
			writes = append(writes, operation{kind: opUpdate, obj: obj})
		case st.IsDirty:
			writes = append(writes, operation{kind: opTouch, obj: obj})
		}
	}
	for i := len(deletes) - 1; i >= 0; i-- {
		writes = append(writes, deletes[i])
	}
	return writes
}

func (c *Committer) apply(ctx context.Context, ds store.DataStore, op operation) error {
	core := op.obj.Core()
	def := core.ClassDef()
	var err error
	switch op.kind {
	case opInsert:
		err = ds.Insert(ctx, def, core.Row())
	case opUpdate:
		err = ds.Update(ctx, def, core.PersistedKey(), core.Row())
	case opDelete:
		err = ds.Delete(ctx, def, core.PersistedKey())
	default:
		return nil
	}
	if err != nil {
		return errs.Persistence(def.ClassName, op.kind.String(), err)
	}
	return nil
}
