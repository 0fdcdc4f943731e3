package staging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/pgload/internal/record"
	"github.com/vvka-141/pgload/pkg/pgload"
)

func testConfig() Config {
	return Config{
		Schema:       "axxia",
		Table:        "cat_institutions_mx",
		StagingTable: "_stg_institutions_csv",
		ActivePolicy: pgload.ActiveAlways,
		MissingToken: "nan",
	}
}

func raw(name, clues string) pgload.RawInstitution {
	return pgload.RawInstitution{Name: name, City: "CDMX", State: "CDMX", Clues: clues, Active: "t"}
}

func TestClearStaging(t *testing.T) {
	q := &fakeQuerier{}
	l := New(q, testConfig())

	require.NoError(t, l.Prepare(context.Background()))

	require.Len(t, q.execs, 1)
	assert.Equal(t, `TRUNCATE TABLE "axxia"."_stg_institutions_csv"`, q.execs[0].sql)
}

func TestClearStaging_Error(t *testing.T) {
	cause := errors.New("permission denied")
	l := New(&fakeQuerier{execErr: cause}, testConfig())

	err := l.ClearStaging(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "_stg_institutions_csv")
}

func TestQualified_QuotesIdentifiers(t *testing.T) {
	assert.Equal(t, `"weird""schema"."t"`, qualified(`weird"schema`, "t"))
	assert.Equal(t, `"t"`, qualified("", "t"))
}

func TestInsertBatch_MultiRowStatement(t *testing.T) {
	q := &fakeQuerier{tag: func(_ string, args []any) pgconn.CommandTag {
		return pgconn.NewCommandTag(fmt.Sprintf("INSERT 0 %d", len(args)/len(pgload.Columns)))
	}}
	l := New(q, testConfig())

	batch := []pgload.RawInstitution{raw("A", "1"), raw("", "2"), raw("C", "")}
	res, err := l.SubmitBatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, pgload.BatchResult{Submitted: 3, Written: 3}, res)
	require.Len(t, q.execs, 1)

	call := q.execs[0]
	assert.True(t, strings.HasPrefix(call.sql, `INSERT INTO "axxia"."_stg_institutions_csv" ("name", "type_norm"`))
	assert.Contains(t, call.sql, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)")
	assert.Contains(t, call.sql, "($25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36)")
	assert.NotContains(t, call.sql, "$37")
	require.Len(t, call.args, 36)
	assert.Equal(t, "A", call.args[0])
	assert.Equal(t, "", call.args[12], "raw rows are staged unvalidated")
}

func TestInsertBatch_Empty(t *testing.T) {
	q := &fakeQuerier{}
	l := New(q, testConfig())

	n, err := l.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, q.execs)
}

func TestSubmitBatch_Error(t *testing.T) {
	cause := errors.New("value too long")
	l := New(&fakeQuerier{execErr: cause}, testConfig())

	res, err := l.SubmitBatch(context.Background(), []pgload.RawInstitution{raw("A", "1")})
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, res.Submitted)
	assert.Zero(t, res.Written)
}

func TestReconcile_Statement(t *testing.T) {
	q := &fakeQuerier{tag: func(string, []any) pgconn.CommandTag {
		return pgconn.NewCommandTag("INSERT 0 1500")
	}}
	l := New(q, testConfig())

	n, err := l.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)

	require.Len(t, q.execs, 1)
	sql := q.execs[0].sql
	assert.Equal(t, []any{"nan", record.Whitespace}, q.execs[0].args)

	assert.Contains(t, sql, `FROM "axxia"."_stg_institutions_csv" s`)
	assert.Contains(t, sql, `INSERT INTO "axxia"."cat_institutions_mx"`)
	assert.Contains(t, sql, `NULLIF(NULLIF(BTRIM(s."clues", $2::text), ''), $1::text) AS "clues"`)
	assert.Contains(t, sql, `"name" IS NOT NULL AND "city" IS NOT NULL AND "state" IS NOT NULL`)
	assert.Contains(t, sql, `DISTINCT ON ("clues")`)
	assert.Contains(t, sql, `ON CONFLICT ("clues") DO UPDATE`)
	assert.Contains(t, sql, `"rfc" = EXCLUDED."rfc"`)
	assert.Contains(t, sql, `"active" = EXCLUDED."active"`)
	assert.NotContains(t, sql, `"clues" = EXCLUDED."clues"`)
	assert.Contains(t, sql, `TRUE AS "active"`)
}

func TestReconcile_ActiveFromSource(t *testing.T) {
	cfg := testConfig()
	cfg.ActivePolicy = pgload.ActiveFromSource
	q := &fakeQuerier{}

	_, err := New(q, cfg).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Contains(t, q.execs[0].sql, `COALESCE(LOWER(BTRIM(s."active", $2::text)) IN ('t','true','1','yes','y'), FALSE) AS "active"`)
}

func TestReconcile_Error(t *testing.T) {
	cause := errors.New("no unique constraint matching ON CONFLICT")
	_, err := New(&fakeQuerier{execErr: cause}, testConfig()).Reconcile(context.Background())
	require.ErrorIs(t, err, cause)
}

func TestVerify(t *testing.T) {
	q := &fakeQuerier{
		count: 1500,
		sample: [][]any{
			{"1", "Hospital A", "Monterrey", "Nuevo León"},
			{"2", "Clínica B", "Guadalajara", "Jalisco"},
		},
	}
	l := New(q, testConfig())

	report, err := l.Verify(context.Background(), 5)
	require.NoError(t, err)

	assert.Equal(t, `"axxia"."cat_institutions_mx"`, report.Table)
	assert.Equal(t, int64(1500), report.Count)
	require.Len(t, report.Sample, 2)
	assert.Equal(t, pgload.SampleRow{ID: "1", Name: "Hospital A", City: "Monterrey", State: "Nuevo León"}, report.Sample[0])
	assert.Equal(t, []any{5}, q.lastArgs)
}

func TestVerify_ZeroSampleSkipsQuery(t *testing.T) {
	q := &fakeQuerier{count: 3, queryErr: errors.New("must not be called")}

	report, err := New(q, testConfig()).Verify(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Count)
	assert.Empty(t, report.Sample)
}

func TestVerify_CountError(t *testing.T) {
	cause := errors.New("relation does not exist")
	_, err := New(&fakeQuerier{countErr: cause}, testConfig()).Verify(context.Background(), 5)
	require.ErrorIs(t, err, cause)
}

func TestClose_WithoutPool(t *testing.T) {
	l := New(&fakeQuerier{}, testConfig())
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
}

type closingConnector struct {
	err    error
	closed bool
}

func (c *closingConnector) Connect(context.Context) (*pgxpool.Pool, error) { return nil, c.err }

func (c *closingConnector) Close() error {
	c.closed = true
	return nil
}

func TestOpen_ConnectFailureClosesConnector(t *testing.T) {
	c := &closingConnector{err: pgload.ErrConnectionFailed}

	_, err := Open(context.Background(), c, testConfig())
	require.ErrorIs(t, err, pgload.ErrConnectionFailed)
	assert.True(t, c.closed)
}
