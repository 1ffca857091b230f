// Package engine turns batches of block records into a Parquet file.
// This package implements:
// - WriteOptions: compression, statistics, format version and per-column encodings
// - Encoder: parallel batch to row group conversion with ordered delivery
// - FileWriter: sequential row group writes and footer finalization
// - Pipeline: producer draining, batching and the end-to-end run
package engine
