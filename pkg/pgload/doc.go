// Package pgload defines the public types shared by the pgload importer:
// institution records, load configuration, the Loader abstraction, and the
// error taxonomy with its exit codes.
//
// Setup failures (configuration, connection, source) are reported as
// *SetupError and never recovered. Batch write failures are reported as
// *BatchError and are either fatal or counted, depending on the
// BatchErrorPolicy of the run.
package pgload
