// Package batch groups items into fixed-size batches to bound the payload of
// each write call.
//
// A Batcher buffers items passed to Add and hands a full batch to its emit
// function as soon as the threshold is reached. Flush emits the final partial
// batch once. No batch is ever emitted empty or twice, so for N items and a
// threshold T exactly ceil(N/T) batches are emitted and their sizes sum to N.
//
// Batchers are not safe for concurrent use.
package batch
