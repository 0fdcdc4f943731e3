// Package db resolves and opens PostgreSQL connections for the staging loader.
//
// Connection strings are accepted in URI or ADO.NET form, or derived from a
// hosted project URL plus database password. Connectors make a single
// attempt; there is no retry. Every connection failure matches
// pgload.ErrConnectionFailed.
package db
