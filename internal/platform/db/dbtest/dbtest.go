// Package dbtest provides a scripted stand-in for a pgx connection pool.
//
// Expectations are consumed strictly in the order they were registered. SQL is
// matched by substring so tests can pin the statement that matters without
// copying whitespace.
package dbtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrUnexpected is returned for any call that does not match the next expectation.
var ErrUnexpected = errors.New("dbtest: unexpected call")

type kind int

const (
	kindBegin kind = iota
	kindExec
	kindQuery
	kindCommit
	kindRollback
)

func (k kind) String() string {
	switch k {
	case kindBegin:
		return "begin"
	case kindExec:
		return "exec"
	case kindQuery:
		return "query"
	case kindCommit:
		return "commit"
	case kindRollback:
		return "rollback"
	}
	return "unknown"
}

// AnyArg matches any argument value in WithArgs.
type AnyArg struct{}

// Expectation describes one scripted call.
type Expectation struct {
	kind      kind
	sql       string
	args      []any
	checkArgs bool
	rows      [][]any
	tag       string
	err       error
}

// WithArgs pins the arguments the call must receive.
func (e *Expectation) WithArgs(args ...any) *Expectation {
	e.args = args
	e.checkArgs = true
	return e
}

// WillReturnRows sets the rows produced by a query expectation.
func (e *Expectation) WillReturnRows(rows ...[]any) *Expectation {
	e.rows = rows
	return e
}

// WillReturnResult sets the command tag of an exec expectation, e.g. "DELETE 2".
func (e *Expectation) WillReturnResult(tag string) *Expectation {
	e.tag = tag
	return e
}

// WillReturnError makes the call fail with err.
func (e *Expectation) WillReturnError(err error) *Expectation {
	e.err = err
	return e
}

// Row is a convenience for building WillReturnRows arguments.
func Row(values ...any) []any { return values }

// DB implements the Exec/Query/QueryRow/BeginTx surface of *pgxpool.Pool.
type DB struct {
	mu         sync.Mutex
	expected   []*Expectation
	unexpected []string
}

// New returns an empty DB.
func New() *DB {
	return &DB{}
}

// ExpectBegin expects a transaction to be opened. WithArgs on the result pins
// the requested pgx.TxIsoLevel.
func (d *DB) ExpectBegin() *Expectation { return d.expect(kindBegin, "") }

// ExpectExec expects an Exec whose SQL contains sql.
func (d *DB) ExpectExec(sql string) *Expectation { return d.expect(kindExec, sql) }

// ExpectQuery expects a Query or QueryRow whose SQL contains sql.
func (d *DB) ExpectQuery(sql string) *Expectation { return d.expect(kindQuery, sql) }

// ExpectCommit expects the open transaction to commit.
func (d *DB) ExpectCommit() *Expectation { return d.expect(kindCommit, "") }

// ExpectRollback expects the open transaction to roll back.
func (d *DB) ExpectRollback() *Expectation { return d.expect(kindRollback, "") }

func (d *DB) expect(k kind, sql string) *Expectation {
	d.mu.Lock()
	defer d.mu.Unlock()
	e := &Expectation{kind: k, sql: sql}
	d.expected = append(d.expected, e)
	return e
}

// ExpectationsWereMet reports unconsumed expectations and unexpected calls.
func (d *DB) ExpectationsWereMet() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var problems []string
	problems = append(problems, d.unexpected...)
	for _, e := range d.expected {
		problems = append(problems, fmt.Sprintf("missing %s %q", e.kind, e.sql))
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.New("dbtest: " + strings.Join(problems, "; "))
}

func (d *DB) next(k kind, sql string, args []any) (*Expectation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	describe := fmt.Sprintf("%s %q", k, compact(sql))
	if len(d.expected) == 0 {
		d.unexpected = append(d.unexpected, "unexpected "+describe)
		return nil, fmt.Errorf("%w: %s", ErrUnexpected, describe)
	}
	e := d.expected[0]
	if e.kind != k || !strings.Contains(compact(sql), compact(e.sql)) {
		d.unexpected = append(d.unexpected, fmt.Sprintf("got %s, want %s %q", describe, e.kind, e.sql))
		return nil, fmt.Errorf("%w: %s", ErrUnexpected, describe)
	}
	if e.checkArgs && !argsMatch(e.args, args) {
		d.unexpected = append(d.unexpected, fmt.Sprintf("%s: args %v, want %v", describe, args, e.args))
		return nil, fmt.Errorf("%w: %s args", ErrUnexpected, describe)
	}
	d.expected = d.expected[1:]
	return e, nil
}

func compact(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func argsMatch(want, got []any) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if _, ok := want[i].(AnyArg); ok {
			continue
		}
		if !reflect.DeepEqual(want[i], got[i]) {
			return false
		}
	}
	return true
}

// Exec implements db.DBTX.
func (d *DB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e, err := d.next(kindExec, sql, args)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	if e.err != nil {
		return pgconn.CommandTag{}, e.err
	}
	return pgconn.NewCommandTag(e.tag), nil
}

// Query implements db.DBTX.
func (d *DB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	e, err := d.next(kindQuery, sql, args)
	if err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	return &rows{data: e.rows, idx: -1}, nil
}

// QueryRow implements db.DBTX.
func (d *DB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	e, err := d.next(kindQuery, sql, args)
	if err != nil {
		return row{err: err}
	}
	if e.err != nil {
		return row{err: e.err}
	}
	if len(e.rows) == 0 {
		return row{err: pgx.ErrNoRows}
	}
	return row{values: e.rows[0]}
}

// BeginTx implements db.TxBeginner.
func (d *DB) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	e, err := d.next(kindBegin, "", []any{opts.IsoLevel})
	if err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	return &tx{db: d}, nil
}

// Begin opens a transaction with default options.
func (d *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return d.BeginTx(ctx, pgx.TxOptions{})
}

type tx struct {
	pgx.Tx
	db     *DB
	closed bool
}

func (t *tx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if t.closed {
		return pgconn.CommandTag{}, pgx.ErrTxClosed
	}
	return t.db.Exec(ctx, sql, args...)
}

func (t *tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t.db.Query(ctx, sql, args...)
}

func (t *tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if t.closed {
		return row{err: pgx.ErrTxClosed}
	}
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *tx) Commit(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	e, err := t.db.next(kindCommit, "", nil)
	if err != nil {
		return err
	}
	return e.err
}

func (t *tx) Rollback(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	e, err := t.db.next(kindRollback, "", nil)
	if err != nil {
		return err
	}
	return e.err
}

type row struct {
	values []any
	err    error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(dest, r.values)
}

type rows struct {
	data   [][]any
	idx    int
	closed bool
	err    error
}

func (r *rows) Close() { r.closed = true }

func (r *rows) Err() error { return r.err }

func (r *rows) CommandTag() pgconn.CommandTag {
	return pgconn.NewCommandTag(fmt.Sprintf("SELECT %d", len(r.data)))
}

func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *rows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	if r.idx >= len(r.data) {
		r.closed = true
		return false
	}
	return true
}

func (r *rows) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.data) {
		return errors.New("dbtest: scan called without a current row")
	}
	if err := scanValues(dest, r.data[r.idx]); err != nil {
		r.err = err
		return err
	}
	return nil
}

func (r *rows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, errors.New("dbtest: no current row")
	}
	return r.data[r.idx], nil
}

func (r *rows) RawValues() [][]byte { return nil }

func (r *rows) Conn() *pgx.Conn { return nil }

func scanValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("dbtest: scan %d values into %d destinations", len(values), len(dest))
	}
	for i := range dest {
		if err := assign(dest[i], values[i]); err != nil {
			return fmt.Errorf("dbtest: column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a non-nil pointer", dest)
	}
	target := dv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(target.Type()) {
		target.Set(src)
		return nil
	}
	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(target.Type().Elem())
		if err := assign(ptr.Interface(), value); err != nil {
			return err
		}
		target.Set(ptr)
		return nil
	}
	if target.Kind() == reflect.String && src.Kind() != reflect.String {
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	if src.Type().ConvertibleTo(target.Type()) {
		target.Set(src.Convert(target.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, target.Type())
}
