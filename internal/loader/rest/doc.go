// Package rest loads institutions through a PostgREST endpoint.
//
// Records are cleaned client-side and plain-inserted in batches. There is no
// conflict handling: rerunning a load duplicates rows unless the target table
// carries a uniqueness constraint, in which case the batch is rejected.
package rest
