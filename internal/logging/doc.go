// Package logging provides concrete implementations of the pgload.Logger interface.
//
// ConsoleLogger writes operator-facing lines to stderr; progress lines
// ("Loaded N rows...") go through Info so they are never hidden by quiet mode.
// NullLogger discards everything and is used by tests.
package logging
