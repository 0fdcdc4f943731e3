package staging

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type execCall struct {
	sql  string
	args []any
}

// fakeQuerier records statements and replays canned results.
type fakeQuerier struct {
	execs   []execCall
	execErr error
	tag     func(sql string, args []any) pgconn.CommandTag

	count    int64
	countErr error

	sample   [][]any
	queryErr error
	lastArgs []any
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	if f.tag != nil {
		return f.tag(sql, args), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeQuerier) Query(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
	f.lastArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.sample, idx: -1}, nil
}

func (f *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return fakeRow{value: f.count, err: f.countErr}
}

type fakeRow struct {
	value int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	p, ok := dest[0].(*int64)
	if !ok {
		return errors.New("fakeRow: want *int64")
	}
	*p = r.value
	return nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Values() ([]any, error) { return r.rows[r.idx], nil }

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("fakeRows: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		p, ok := d.(*string)
		if !ok {
			return fmt.Errorf("fakeRows: destination %d is not *string", i)
		}
		*p = row[i].(string)
	}
	return nil
}
