package types

import "errors"

// Row is a single result row keyed by column name. Integer columns carry
// int64, text columns string, blob columns []byte.
type Row map[string]any

// Int64 returns the named column as int64, 0 when absent or of another
// type.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// String returns the named column as string, "" when absent or of
// another type.
func (r Row) String(col string) string {
	if v, ok := r[col].(string); ok {
		return v
	}
	return ""
}

// Bytes returns the named column as []byte, nil when absent.
func (r Row) Bytes(col string) []byte {
	switch v := r[col].(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	}
	return nil
}

// SequenceEntityID names the sequence producing surrogate entity IDs.
// The backing store seeds it at BorderID so the first allocated ID lands
// above the predefined range.
const SequenceEntityID = "smw_id"

// SelectOptions carries the optional clauses of a Select.
type SelectOptions struct {
	OrderBy  string // Raw ORDER BY expression; "" for store order.
	GroupBy  string // Raw GROUP BY expression; "" for none.
	Having   string // Raw HAVING expression; only meaningful with GroupBy.
	Limit    int    // 0 means no limit.
	Offset   int    // Rows to skip; only meaningful with Limit.
	Distinct bool   // SELECT DISTINCT when true.
}

// Store operation errors (prd003-backing-store R7).
var (
	ErrNoRows          = errors.New("no matching row")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrStoreReadOnly   = errors.New("store is read-only")
	ErrDetached        = errors.New("store is detached")
)

// Store is the relational backing-store contract the identity engine is
// written against. Conditions are column→value maps; a slice value means
// SQL IN over its members, nil means IS NULL.
//
// Atomic runs fn inside one all-or-nothing transaction; the Store handed
// to fn executes against that transaction. NextSequenceValue must be
// called inside Atomic when the produced value is used in a subsequent
// insert.
// Implements: prd003-backing-store R1.
type Store interface {
	Select(table string, columns []string, conds map[string]any, opts *SelectOptions) ([]Row, error)

	// SelectRow returns the single matching row, or ErrNoRows.
	SelectRow(table string, columns []string, conds map[string]any) (Row, error)

	// Insert returns ErrUniqueViolation when the row collides with a
	// unique index; callers racing on creation treat that as "someone
	// else just created it".
	Insert(table string, values Row) error

	Update(table string, values Row, conds map[string]any) error

	Delete(table string, conds map[string]any) error

	// Upsert inserts the row, or applies update values when a row with
	// the same uniqueColumns values already exists.
	Upsert(table string, values Row, uniqueColumns []string, update Row) error

	// NextSequenceValue returns the next value of a named sequence.
	NextSequenceValue(name string) (int64, error)

	// Atomic runs fn in one transaction. Nested calls join the enclosing
	// transaction.
	Atomic(fn func(Store) error) error

	// ReadOnly reports whether write operations are permitted. Write-side
	// engine operations against a read-only store are a caller contract
	// violation (ErrStoreReadOnly).
	ReadOnly() bool
}
