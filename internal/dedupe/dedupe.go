package dedupe

import (
	"context"
	"fmt"
	"iter"

	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of pending inserts buffered before each
// bulk write when no explicit batch size is configured.
const DefaultBatchSize = 1000

// Document is an opaque, schema-less record read from the source. The
// pipeline never mutates field values, it only relocates whole documents.
type Document map[string]any

// Source produces a lazy sequence of deduplicated documents: exactly one
// representative per distinct value of the dedupe field, chosen by sorting
// ascending on that field and taking the first document of each group.
// Documents missing the field are grouped under the null key like any other
// value. The sequence is finite and not restartable; iterating it may block
// on store I/O. A non-nil error terminates the sequence.
type Source interface {
	GroupAndPickFirst(ctx context.Context, field string) iter.Seq2[Document, error]
}

// Destination is the write side of the pipeline. BulkInsert submits one
// unordered bulk operation: per-document failures are tolerated (the store
// keeps attempting the rest of the batch) and reflected only in the returned
// count, while a failure of the call itself is returned as an error.
type Destination interface {
	Clear(ctx context.Context) (int64, error)
	BulkInsert(ctx context.Context, docs []Document) (int, error)
}

// Result reports what a run did to the destination. Complete is false when
// the run stopped on a hard failure; Inserted then counts the documents
// already committed inside the partial-copy window.
type Result struct {
	Inserted int
	Batches  int
	Cleared  int64
	Complete bool
}

// Pipeline copies the deduplicated view of a source collection into a
// destination collection. It is single-threaded and pull-based: Run drives
// the source sequence and flushes batches sequentially. Concurrent runs
// against the same destination are not coordinated and not supported.
type Pipeline struct {
	src   Source
	dst   Destination
	field string

	batchSize int
	limiter   *rate.Limiter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize sets how many documents are buffered before each bulk
// insert. Values <= 0 are rejected by Run before any I/O.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) { p.batchSize = n }
}

// WithThrottle paces bulk writes with the given limiter, one token per
// flush. A nil limiter leaves writes unthrottled.
func WithThrottle(l *rate.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// New builds a pipeline from the two collection handles and the dedupe
// field name.
func New(src Source, dst Destination, field string, opts ...Option) *Pipeline {
	p := &Pipeline{
		src:       src,
		dst:       dst,
		field:     field,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run clears the destination, streams the grouped source sequence, and
// flushes it in batches. It returns the totals for the run. No retries, no
// rollback: a QueryError or WriteError stops the run at whatever state the
// destination happens to be in, with Result.Complete false and
// Result.Inserted carrying the committed count.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	var res Result

	if p.batchSize <= 0 {
		return res, &ConfigError{Reason: fmt.Sprintf("batch size must be positive (got %d)", p.batchSize)}
	}
	if err := ValidateField(p.field); err != nil {
		return res, err
	}

	cleared, err := p.dst.Clear(ctx)
	if err != nil {
		return res, &WriteError{Op: "destination clear", Err: err}
	}
	res.Cleared = cleared

	batch := make([]Document, 0, p.batchSize)
	flush := func() error {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return &WriteError{Op: "bulk insert", Inserted: res.Inserted, Err: err}
			}
		}
		n, err := p.dst.BulkInsert(ctx, batch)
		res.Inserted += n
		if err != nil {
			return &WriteError{Op: "bulk insert", Inserted: res.Inserted, Err: err}
		}
		res.Batches++
		batch = batch[:0]
		return nil
	}

	for doc, err := range p.src.GroupAndPickFirst(ctx, p.field) {
		if err != nil {
			return res, &QueryError{Err: err}
		}
		batch = append(batch, doc)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return res, err
			}
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return res, err
		}
	}

	res.Complete = true
	return res, nil
}
