// Package csvsource streams institution rows out of a delimited file.
//
// A Reader is finite and single-pass: Next returns rows in file order and
// io.EOF at the end; reading again requires reopening the file. Rows are
// decoded by header name, so column order in the file does not matter, but
// every recognized column must be present in the header.
//
// Malformed input is surfaced immediately rather than skipped: a row whose
// field count differs from the header yields a *FormatError.
package csvsource
