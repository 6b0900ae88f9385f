package db

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/ammar0144/bo4go/pkg/bo"
	"github.com/ammar0144/bo4go/pkg/criteria"
	"github.com/ammar0144/bo4go/pkg/order"
)

// SQL builder for business object tables.
//
// Identifiers come from class definitions and are quoted with backticks.
// Values are always passed as placeholders. Criteria and order fields are
// property names and are mapped to columns through the class definition.

// Operator represents SQL comparison operators
type Operator string

const (
	Equal              Operator = "="
	NotEqual           Operator = "!="
	GreaterThan        Operator = ">"
	GreaterThanOrEqual Operator = ">="
	LessThan           Operator = "<"
	LessThanOrEqual    Operator = "<="
	Like               Operator = "LIKE"
	In                 Operator = "IN"
	IsNull             Operator = "IS NULL"
	IsNotNull          Operator = "IS NOT NULL"
)

// LogicalOperator for combining conditions
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// maxRows is the LIMIT MySQL requires for an OFFSET without a row cap
const maxRows = "18446744073709551615"

// Condition represents a WHERE clause condition on a column
type Condition struct {
	Column   string
	Operator Operator
	Value    interface{}
}

// ConditionGroup represents grouped conditions with logical operators
type ConditionGroup struct {
	Conditions []interface{} // Can be Condition or nested ConditionGroup
	Operator   LogicalOperator
}

// Builder builds the statements run against one class's table
type Builder struct {
	def     *bo.ClassDef
	where   *ConditionGroup
	orderBy []string
	limit   int
	offset  int
}

// NewBuilder creates a builder for def's table. Without a Limit call every
// row is selected.
func NewBuilder(def *bo.ClassDef) *Builder {
	return &Builder{
		def:   def,
		where: &ConditionGroup{Operator: And},
		limit: -1,
	}
}

// Where adds a WHERE condition on a property
func (b *Builder) Where(property string, operator Operator, value interface{}) *Builder {
	b.where.Conditions = append(b.where.Conditions, Condition{
		Column:   b.def.ColumnName(property),
		Operator: operator,
		Value:    value,
	})
	return b
}

// WhereCriteria adds crit to the WHERE clause. A nil criteria adds nothing.
func (b *Builder) WhereCriteria(crit *criteria.Criteria) (*Builder, error) {
	if crit == nil {
		return b, nil
	}
	item, err := b.translate(crit)
	if err != nil {
		return nil, err
	}
	b.where.Conditions = append(b.where.Conditions, item)
	return b, nil
}

func (b *Builder) translate(crit *criteria.Criteria) (interface{}, error) {
	if !crit.IsGroup() {
		if _, ok := b.def.Property(crit.Field); !ok {
			return nil, fmt.Errorf("criteria field %s is not a property of %s", crit.Field, b.def.ClassName)
		}
		return Condition{
			Column:   b.def.ColumnName(crit.Field),
			Operator: Operator(crit.Operator),
			Value:    crit.Value,
		}, nil
	}
	group := &ConditionGroup{Operator: LogicalOperator(crit.Logical)}
	for _, child := range crit.Children {
		item, err := b.translate(child)
		if err != nil {
			return nil, err
		}
		group.Conditions = append(group.Conditions, item)
	}
	return group, nil
}

// OrderBy adds an ORDER BY clause on a property
func (b *Builder) OrderBy(property string, desc bool) *Builder {
	clause := quote(b.def.ColumnName(property))
	if desc {
		clause += " DESC"
	} else {
		clause += " ASC"
	}
	b.orderBy = append(b.orderBy, clause)
	return b
}

// OrderByCriteria adds every field of oc. Fields reached through a
// relationship cannot be ordered by in SQL.
func (b *Builder) OrderByCriteria(oc *order.Criteria) (*Builder, error) {
	for _, f := range oc.Fields() {
		if len(f.Source) > 0 {
			return nil, fmt.Errorf("order field %s of %s refers to a related object", f.FullName(), b.def.ClassName)
		}
		if _, ok := b.def.Property(f.Name); !ok {
			return nil, fmt.Errorf("order field %s is not a property of %s", f.Name, b.def.ClassName)
		}
		b.OrderBy(f.Name, f.Direction == order.Descending)
	}
	return b, nil
}

// Limit sets the LIMIT clause; negative means no limit
func (b *Builder) Limit(limit int) *Builder {
	b.limit = limit
	return b
}

// Offset sets the OFFSET clause
// Negative values are normalized to 0
func (b *Builder) Offset(offset int) *Builder {
	if offset < 0 {
		offset = 0
	}
	b.offset = offset
	return b
}

// Helper method to add conditions to a condition group
func (g *ConditionGroup) Where(column string, operator Operator, value interface{}) *ConditionGroup {
	g.Conditions = append(g.Conditions, Condition{
		Column:   column,
		Operator: operator,
		Value:    value,
	})
	return g
}

// BuildSelect builds a SELECT of every property column
func (b *Builder) BuildSelect() (string, []interface{}) {
	var query strings.Builder
	var args []interface{}

	cols := make([]string, len(b.def.Properties))
	for i, p := range b.def.Properties {
		cols[i] = quote(b.def.ColumnName(p.Name))
	}
	query.WriteString("SELECT ")
	query.WriteString(strings.Join(cols, ", "))
	query.WriteString(" FROM ")
	query.WriteString(quote(b.def.Table()))

	whereSQL, whereArgs := b.buildWhere()
	query.WriteString(whereSQL)
	args = append(args, whereArgs...)

	if len(b.orderBy) > 0 {
		query.WriteString(" ORDER BY ")
		query.WriteString(strings.Join(b.orderBy, ", "))
	}

	switch {
	case b.limit >= 0:
		query.WriteString(fmt.Sprintf(" LIMIT %d", b.limit))
	case b.offset > 0:
		query.WriteString(" LIMIT " + maxRows)
	}
	if b.offset > 0 {
		query.WriteString(fmt.Sprintf(" OFFSET %d", b.offset))
	}

	return query.String(), args
}

// BuildCount builds a SELECT COUNT(*) over the WHERE clause, ignoring order
// and window
func (b *Builder) BuildCount() (string, []interface{}) {
	whereSQL, args := b.buildWhere()
	return "SELECT COUNT(*) FROM " + quote(b.def.Table()) + whereSQL, args
}

func (b *Builder) buildWhere() (string, []interface{}) {
	sql, args := b.buildConditionGroup(b.where)
	if sql == "" {
		return "", nil
	}
	return " WHERE " + sql, args
}

// buildConditionGroup builds SQL for a condition group with proper logical operators
func (b *Builder) buildConditionGroup(group *ConditionGroup) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	for _, item := range group.Conditions {
		switch cond := item.(type) {
		case Condition:
			condSQL, condArgs := b.buildCondition(cond)
			conditions = append(conditions, condSQL)
			args = append(args, condArgs...)
		case *ConditionGroup:
			if groupSQL, groupArgs := b.buildConditionGroup(cond); groupSQL != "" {
				conditions = append(conditions, "("+groupSQL+")")
				args = append(args, groupArgs...)
			}
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return strings.Join(conditions, " "+string(group.Operator)+" "), args
}

// buildCondition builds SQL for a single condition
func (b *Builder) buildCondition(cond Condition) (string, []interface{}) {
	col := quote(cond.Column)
	switch cond.Operator {
	case IsNull, IsNotNull:
		return fmt.Sprintf("%s %s", col, cond.Operator), nil
	case In:
		return b.buildInCondition(col, cond.Value)
	}
	return fmt.Sprintf("%s %s ?", col, cond.Operator), []interface{}{cond.Value}
}

// buildInCondition builds IN conditions with proper placeholder expansion
func (b *Builder) buildInCondition(col string, value interface{}) (string, []interface{}) {
	if value == nil {
		return "1 = 0", nil
	}

	v := reflect.ValueOf(value)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return fmt.Sprintf("%s IN (?)", col), []interface{}{value}
	}

	length := v.Len()
	if length == 0 {
		return "1 = 0", nil
	}

	placeholders := make([]string, length)
	args := make([]interface{}, length)
	for i := 0; i < length; i++ {
		placeholders[i] = "?"
		args[i] = v.Index(i).Interface()
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), args
}

// BuildInsert builds an INSERT of every property column and returns the
// values of row in column order
func (b *Builder) BuildInsert(row bo.Row) (string, []interface{}) {
	cols := make([]string, len(b.def.Properties))
	placeholders := make([]string, len(b.def.Properties))
	args := make([]interface{}, len(b.def.Properties))
	for i, p := range b.def.Properties {
		cols[i] = quote(b.def.ColumnName(p.Name))
		placeholders[i] = "?"
		args[i] = row[p.Name]
	}

	var query strings.Builder
	query.WriteString("INSERT INTO ")
	query.WriteString(quote(b.def.Table()))
	query.WriteString(" (")
	query.WriteString(strings.Join(cols, ", "))
	query.WriteString(") VALUES (")
	query.WriteString(strings.Join(placeholders, ", "))
	query.WriteString(")")
	return query.String(), args
}

// BuildUpdate builds an UPDATE of every property column of the row
// identified by key
func (b *Builder) BuildUpdate(key bo.Row, row bo.Row) (string, []interface{}) {
	sets := make([]string, len(b.def.Properties))
	args := make([]interface{}, 0, len(b.def.Properties)+len(b.def.PrimaryKey))
	for i, p := range b.def.Properties {
		sets[i] = quote(b.def.ColumnName(p.Name)) + " = ?"
		args = append(args, row[p.Name])
	}
	whereSQL, whereArgs := b.keyClause(key)
	return "UPDATE " + quote(b.def.Table()) + " SET " + strings.Join(sets, ", ") + whereSQL, append(args, whereArgs...)
}

// BuildDelete builds a DELETE of the row identified by key
func (b *Builder) BuildDelete(key bo.Row) (string, []interface{}) {
	whereSQL, args := b.keyClause(key)
	return "DELETE FROM " + quote(b.def.Table()) + whereSQL, args
}

func (b *Builder) keyClause(key bo.Row) (string, []interface{}) {
	conds := make([]string, len(b.def.PrimaryKey))
	args := make([]interface{}, len(b.def.PrimaryKey))
	for i, name := range b.def.PrimaryKey {
		conds[i] = quote(b.def.ColumnName(name)) + " = ?"
		args[i] = key[name]
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}
