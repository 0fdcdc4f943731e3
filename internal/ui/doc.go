// Package ui holds the operator-facing terminal pieces: approval prompts
// before the staging table is cleared, and rendering of the load summary
// and verification report.
package ui
