package staging

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// truthySQL lists the tokens record.ParseActive accepts.
const truthySQL = "('t','true','1','yes','y')"

func qualified(schema, table string) string {
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func columnList() string {
	quoted := make([]string, len(pgload.Columns))
	for i, c := range pgload.Columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

// insertSQL builds a multi-row INSERT for rows records of len(Columns) values each.
func insertSQL(staging string, rows int) string {
	width := len(pgload.Columns)

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", staging, columnList())
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := 0; c < width; c++ {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", r*width+c+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}

func activeExpr(policy pgload.ActivePolicy) string {
	if policy == pgload.ActiveFromSource {
		return `COALESCE(LOWER(BTRIM(s."active", $2::text)) IN ` + truthySQL + ", FALSE)"
	}
	return "TRUE"
}

// reconcileSQL cleans staging rows and upserts them into canonical.
// $1 is the missing-value token and $2 the record.Whitespace cutset.
// Duplicate non-null clues inside staging collapse to the physically last
// staged row.
func reconcileSQL(staging, canonical string, policy pgload.ActivePolicy) string {
	var cleaned []string
	for _, c := range pgload.Columns {
		if c == "active" {
			continue
		}
		id := pgx.Identifier{c}.Sanitize()
		cleaned = append(cleaned, fmt.Sprintf("NULLIF(NULLIF(BTRIM(s.%s, $2::text), ''), $1::text) AS %s", id, id))
	}
	cleaned = append(cleaned, activeExpr(policy)+` AS "active"`)

	var updates []string
	for _, c := range pgload.Columns {
		if c == "clues" {
			continue
		}
		id := pgx.Identifier{c}.Sanitize()
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", id, id))
	}

	cols := columnList()
	return fmt.Sprintf(`WITH cleaned AS (
  SELECT s.ctid AS row_ctid,
    %s
  FROM %s s
),
valid AS (
  SELECT * FROM cleaned
  WHERE "name" IS NOT NULL AND "city" IS NOT NULL AND "state" IS NOT NULL
),
deduped AS (
  (SELECT DISTINCT ON ("clues") * FROM valid WHERE "clues" IS NOT NULL ORDER BY "clues", row_ctid DESC)
  UNION ALL
  (SELECT * FROM valid WHERE "clues" IS NULL)
)
INSERT INTO %s (%s)
SELECT %s FROM deduped
ON CONFLICT ("clues") DO UPDATE
SET %s`,
		strings.Join(cleaned, ",\n    "),
		staging,
		canonical, cols,
		cols,
		strings.Join(updates, ",\n    "),
	)
}
