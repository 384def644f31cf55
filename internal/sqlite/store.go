package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/semid/pkg/types"
)

// dbFileName is the database file created under the data directory.
const dbFileName = "semid.db"

// queryer abstracts *sql.DB and *sql.Tx so the same statement builders
// serve both the plain store and its transactional view.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store implements types.Store over a SQLite database file.
type Store struct {
	db       *sql.DB
	q        queryer
	logger   *slog.Logger
	readOnly bool
	inTx     bool
}

// Open creates the data directory if needed, opens (or creates) the
// database file, and applies the schema. A nil logger falls back to
// slog.Default(). With readOnly set, schema application and seeding are
// skipped and every write operation returns ErrStoreReadOnly.
func Open(dataDir string, readOnly bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Serialize access through one connection; SQLite handles its own
	// cross-process locking.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, q: db, logger: logger, readOnly: readOnly}
	if !readOnly {
		if err := s.applySchema(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// applySchema creates tables and indexes and seeds the sentinel border
// row and the entity ID sequence.
func (s *Store) applySchema() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}
	for _, ddl := range schemaDDL {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	// Entity IDs start above the predefined range.
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO sequences (seq_name, next_value) VALUES (?, ?)`,
		types.SequenceEntityID, types.BorderID,
	); err != nil {
		return fmt.Errorf("seed sequence: %w", err)
	}

	// Sentinel row marking the predefined/user boundary.
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO sem_object_ids
		 (smw_id, smw_title, smw_namespace, smw_iw, smw_subobject, smw_sortkey, smw_sort, smw_hash, smw_rev)
		 VALUES (?, '', 0, ?, '', '', '', ?, 0)`,
		types.BorderID, types.IWBorder, types.ComputeHash("", 0, types.IWBorder, ""),
	); err != nil {
		return fmt.Errorf("seed border row: %w", err)
	}
	return nil
}

// Close releases the database handle. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) ReadOnly() bool { return s.readOnly }

// buildWhere renders a condition map into a WHERE clause. Keys are
// sorted so generated SQL is deterministic. A slice value renders as IN,
// nil as IS NULL.
func buildWhere(conds map[string]any) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	var args []any
	b.WriteString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(" AND ")
		}
		switch v := conds[k].(type) {
		case nil:
			b.WriteString(k + " IS NULL")
		case []int64:
			b.WriteString(k + " IN (" + placeholders(len(v)) + ")")
			for _, item := range v {
				args = append(args, item)
			}
		case []string:
			b.WriteString(k + " IN (" + placeholders(len(v)) + ")")
			for _, item := range v {
				args = append(args, item)
			}
		case []any:
			b.WriteString(k + " IN (" + placeholders(len(v)) + ")")
			args = append(args, v...)
		default:
			b.WriteString(k + " = ?")
			args = append(args, v)
		}
	}
	return b.String(), args
}

func placeholders(n int) string {
	if n == 0 {
		// IN () is a syntax error; an empty set matches nothing.
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func buildSelect(table string, columns []string, conds map[string]any, opts *types.SelectOptions) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	if opts != nil && opts.Distinct {
		b.WriteString("DISTINCT ")
	}
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM " + table)
	where, args := buildWhere(conds)
	b.WriteString(where)
	if opts != nil {
		if opts.GroupBy != "" {
			b.WriteString(" GROUP BY " + opts.GroupBy)
			if opts.Having != "" {
				b.WriteString(" HAVING " + opts.Having)
			}
		}
		if opts.OrderBy != "" {
			b.WriteString(" ORDER BY " + opts.OrderBy)
		}
		if opts.Limit > 0 {
			b.WriteString(fmt.Sprintf(" LIMIT %d", opts.Limit))
			if opts.Offset > 0 {
				b.WriteString(fmt.Sprintf(" OFFSET %d", opts.Offset))
			}
		}
	}
	return b.String(), args
}

func scanRows(rows *sql.Rows) ([]types.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []types.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(types.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func (s *Store) Select(table string, columns []string, conds map[string]any, opts *types.SelectOptions) ([]types.Row, error) {
	query, args := buildSelect(table, columns, conds, opts)
	rows, err := s.q.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) SelectRow(table string, columns []string, conds map[string]any) (types.Row, error) {
	opts := &types.SelectOptions{Limit: 1}
	rows, err := s.Select(table, columns, conds, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNoRows
	}
	return rows[0], nil
}

func (s *Store) Insert(table string, values types.Row) error {
	if s.readOnly {
		return types.ErrStoreReadOnly
	}
	keys := sortedKeys(values)
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = values[k]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(keys, ", "), placeholders(len(keys)))
	if _, err := s.q.Exec(query, args...); err != nil {
		return wrapConstraint(fmt.Errorf("insert %s: %w", table, err))
	}
	return nil
}

func (s *Store) Update(table string, values types.Row, conds map[string]any) error {
	if s.readOnly {
		return types.ErrStoreReadOnly
	}
	keys := sortedKeys(values)
	sets := make([]string, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		sets[i] = k + " = ?"
		args = append(args, values[k])
	}
	where, whereArgs := buildWhere(conds)
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), where)
	if _, err := s.q.Exec(query, args...); err != nil {
		return wrapConstraint(fmt.Errorf("update %s: %w", table, err))
	}
	return nil
}

func (s *Store) Delete(table string, conds map[string]any) error {
	if s.readOnly {
		return types.ErrStoreReadOnly
	}
	where, args := buildWhere(conds)
	if _, err := s.q.Exec("DELETE FROM "+table+where, args...); err != nil {
		return fmt.Errorf("delete %s: %w", table, err)
	}
	return nil
}

func (s *Store) Upsert(table string, values types.Row, uniqueColumns []string, update types.Row) error {
	if s.readOnly {
		return types.ErrStoreReadOnly
	}
	keys := sortedKeys(values)
	args := make([]any, 0, len(keys)+len(update))
	for _, k := range keys {
		args = append(args, values[k])
	}
	updKeys := sortedKeys(update)
	sets := make([]string, len(updKeys))
	for i, k := range updKeys {
		sets[i] = k + " = ?"
		args = append(args, update[k])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table, strings.Join(keys, ", "), placeholders(len(keys)),
		strings.Join(uniqueColumns, ", "), strings.Join(sets, ", "))
	if _, err := s.q.Exec(query, args...); err != nil {
		return fmt.Errorf("upsert %s: %w", table, err)
	}
	return nil
}

func (s *Store) NextSequenceValue(name string) (int64, error) {
	if s.readOnly {
		return 0, types.ErrStoreReadOnly
	}
	if _, err := s.q.Exec(
		`INSERT INTO sequences (seq_name, next_value) VALUES (?, 1)
		 ON CONFLICT(seq_name) DO UPDATE SET next_value = next_value + 1`,
		name,
	); err != nil {
		return 0, fmt.Errorf("advance sequence %s: %w", name, err)
	}
	var v int64
	if err := s.q.QueryRow(`SELECT next_value FROM sequences WHERE seq_name = ?`, name).Scan(&v); err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	return v, nil
}

// Atomic runs fn in one transaction. A nested call joins the enclosing
// transaction instead of opening a second one.
func (s *Store) Atomic(fn func(types.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if s.readOnly {
		return types.ErrStoreReadOnly
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, logger: s.logger, readOnly: s.readOnly, inTx: true}
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// wrapConstraint maps the driver's unique-constraint failure onto the
// sentinel so callers racing on creation can detect "someone else just
// created it".
func wrapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", types.ErrUniqueViolation, err)
	}
	return err
}

func sortedKeys(m types.Row) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ types.Store = (*Store)(nil)
