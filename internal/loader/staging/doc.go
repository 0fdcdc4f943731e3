// Package staging loads institutions over a direct PostgreSQL connection.
//
// Raw CSV rows are bulk-inserted into a staging table without validation.
// A single reconciling statement then cleans them and upserts into the
// canonical table keyed on clues. A failed batch leaves the staging table
// partially populated and the canonical table untouched.
package staging
