// Package gormstore is a DataStore over MySQL reached through GORM.
//
// Statements are built by db.Builder from class definitions and run as raw
// SQL, so business objects need no GORM models.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/db"
	"github.com/ammar0144/bo4go/pkg/errs"
	"github.com/ammar0144/bo4go/pkg/store"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY
const mysqlDuplicateEntry = 1062

// Store runs DataStore operations on a GORM connection
type Store struct {
	db     *gorm.DB
	logger *zap.Logger

	// timeout bounds each statement; zero leaves ctx as given
	timeout time.Duration
}

var (
	_ store.DataStore     = (*Store)(nil)
	_ store.Transactional = (*Store)(nil)
)

// New creates a store on conn
func New(conn *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: conn, logger: log.Named("gormstore")}
}

// NewFromManager creates a store on the manager's connection, bounding each
// statement by the configured query timeout
func NewFromManager(m *db.Manager, log *zap.Logger) *Store {
	s := New(m.DB(), log)
	if cfg := m.Config(); cfg != nil {
		s.timeout = cfg.QueryTimeout
	}
	return s
}

// withQueryTimeout wraps a context with the configured query timeout
func (s *Store) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

// Select implements store.DataStore. The total is counted first and the
// window is only fetched when it can hold rows.
func (s *Store) Select(ctx context.Context, def *bo.ClassDef, q store.Query) (store.Result, error) {
	if err := q.Validate(); err != nil {
		return store.Result{}, err
	}

	b, err := db.NewBuilder(def).WhereCriteria(q.Criteria)
	if err != nil {
		return store.Result{}, errs.Configuration(def.ClassName, "select", "%v", err)
	}
	if _, err := b.OrderByCriteria(q.OrderBy); err != nil {
		return store.Result{}, errs.Configuration(def.ClassName, "select", "%v", err)
	}

	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	conn := s.db.WithContext(ctx)

	var total int64
	countSQL, countArgs := b.BuildCount()
	if err := conn.Raw(countSQL, countArgs...).Scan(&total).Error; err != nil {
		return store.Result{}, fmt.Errorf("count %s: %w", def.ClassName, err)
	}

	result := store.Result{Rows: []bo.Row{}, Total: int(total)}
	if q.Limit == 0 || q.First >= result.Total {
		return result, nil
	}

	selectSQL, selectArgs := b.Limit(q.Limit).Offset(q.First).BuildSelect()
	rows, err := conn.Raw(selectSQL, selectArgs...).Rows()
	if err != nil {
		return store.Result{}, fmt.Errorf("select %s: %w", def.ClassName, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return store.Result{}, err
	}
	props := propertiesByColumn(def)

	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return store.Result{}, fmt.Errorf("scan %s: %w", def.ClassName, err)
		}
		row := make(bo.Row, len(columns))
		for i, col := range columns {
			name, ok := props[col]
			if !ok {
				name = col
			}
			row[name] = normalize(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return store.Result{}, fmt.Errorf("select %s: %w", def.ClassName, err)
	}

	s.logger.Debug("selected",
		zap.String("class", def.ClassName),
		zap.Int("rows", len(result.Rows)),
		zap.Int("total", result.Total))
	return result, nil
}

// Insert implements store.DataStore
func (s *Store) Insert(ctx context.Context, def *bo.ClassDef, row bo.Row) error {
	sql, args := db.NewBuilder(def).BuildInsert(row)
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	if err := s.db.WithContext(ctx).Exec(sql, args...).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert %s %s: %w", def.ClassName, bo.KeyOf(def, row), store.ErrDuplicateKey)
		}
		return fmt.Errorf("insert %s: %w", def.ClassName, err)
	}
	return nil
}

// Update implements store.DataStore
func (s *Store) Update(ctx context.Context, def *bo.ClassDef, key bo.Row, row bo.Row) error {
	sql, args := db.NewBuilder(def).BuildUpdate(key, row)
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	res := s.db.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return fmt.Errorf("update %s %s: %w", def.ClassName, bo.KeyOf(def, row), store.ErrDuplicateKey)
		}
		return fmt.Errorf("update %s: %w", def.ClassName, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update %s %s: %w", def.ClassName, bo.KeyOf(def, key), errs.ErrNotFound)
	}
	return nil
}

// Delete implements store.DataStore
func (s *Store) Delete(ctx context.Context, def *bo.ClassDef, key bo.Row) error {
	sql, args := db.NewBuilder(def).BuildDelete(key)
	ctx, cancel := s.withQueryTimeout(ctx)
	defer cancel()
	res := s.db.WithContext(ctx).Exec(sql, args...)
	if res.Error != nil {
		return fmt.Errorf("delete %s: %w", def.ClassName, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete %s %s: %w", def.ClassName, bo.KeyOf(def, key), errs.ErrNotFound)
	}
	return nil
}

// WithinTx implements store.Transactional
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.DataStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger, timeout: s.timeout})
	})
}

func propertiesByColumn(def *bo.ClassDef) map[string]string {
	out := make(map[string]string, len(def.Properties))
	for _, p := range def.Properties {
		out[def.ColumnName(p.Name)] = p.Name
	}
	return out
}

// normalize turns driver byte slices into strings
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func isDuplicate(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}
