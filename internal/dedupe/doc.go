// Package dedupe implements the dedup-and-bulk-copy pipeline.
//
// The pipeline streams one representative document per distinct value of a
// configured field from a source collection and materializes them into a
// destination collection: the destination is cleared first, then documents
// are buffered into fixed-size batches and flushed with unordered bulk
// inserts. Individual insert failures inside a batch are tolerated and show
// up only as a lower inserted count; a failed bulk call aborts the run and
// leaves the destination holding whatever batches were already committed.
//
// The package does not talk to any particular store. It depends on the
// Source and Destination capability interfaces; internal/store provides the
// MongoDB implementation and an in-memory reference implementation used by
// tests.
package dedupe
