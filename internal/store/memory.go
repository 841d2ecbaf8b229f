package store

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ziangzhang/mdedup/internal/dedupe"
)

// Memory is an in-memory collection satisfying the same capability
// interfaces as Collection. It is the reference implementation used by the
// pipeline tests: grouping follows the server's semantics (ascending sort
// on the field, insertion order breaking ties, documents missing the field
// grouped under the null key).
type Memory struct {
	docs []dedupe.Document

	// RejectInsert, when non-nil, is consulted per document during
	// BulkInsert. A true return simulates an individual insert failure
	// (e.g. a constraint violation) inside an unordered bulk write: the
	// document is skipped and the rest of the batch still lands.
	RejectInsert func(doc dedupe.Document) bool

	// FailBulk, when non-nil, makes every BulkInsert call fail outright,
	// simulating connectivity loss mid-run.
	FailBulk error

	// FailQuery, when non-nil, makes GroupAndPickFirst fail, simulating a
	// store-side rejection of the grouping operation.
	FailQuery error
}

// NewMemory builds a collection pre-populated with the given documents, in
// insertion order.
func NewMemory(docs ...dedupe.Document) *Memory {
	m := &Memory{}
	m.docs = append(m.docs, docs...)
	return m
}

// Documents returns the current contents in insertion order.
func (m *Memory) Documents() []dedupe.Document {
	out := make([]dedupe.Document, len(m.docs))
	copy(out, m.docs)
	return out
}

// GroupAndPickFirst yields one representative per distinct value of field:
// the document that sorts first ascending on that value, with the store's
// insertion order breaking ties among equal keys.
func (m *Memory) GroupAndPickFirst(ctx context.Context, field string) iter.Seq2[dedupe.Document, error] {
	return func(yield func(dedupe.Document, error) bool) {
		if m.FailQuery != nil {
			yield(nil, m.FailQuery)
			return
		}

		sorted := make([]dedupe.Document, len(m.docs))
		copy(sorted, m.docs)
		sort.SliceStable(sorted, func(i, j int) bool {
			return compareValues(sorted[i][field], sorted[j][field]) < 0
		})

		for i, doc := range sorted {
			if i > 0 && compareValues(doc[field], sorted[i-1][field]) == 0 {
				continue
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// Clear removes everything and returns the prior document count.
func (m *Memory) Clear(ctx context.Context) (int64, error) {
	n := int64(len(m.docs))
	m.docs = nil
	return n, nil
}

// BulkInsert appends the batch, assigning a store identity to documents
// that lack one. Rejected documents are skipped without failing the batch,
// matching unordered bulk-write semantics.
func (m *Memory) BulkInsert(ctx context.Context, docs []dedupe.Document) (int, error) {
	if m.FailBulk != nil {
		return 0, m.FailBulk
	}

	inserted := 0
	for _, doc := range docs {
		if m.RejectInsert != nil && m.RejectInsert(doc) {
			continue
		}
		stored := make(dedupe.Document, len(doc)+1)
		for k, v := range doc {
			stored[k] = v
		}
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = uuid.New().String()
		}
		m.docs = append(m.docs, stored)
		inserted++
	}
	return inserted, nil
}

// Count returns the number of stored documents.
func (m *Memory) Count(ctx context.Context) (int64, error) {
	return int64(len(m.docs)), nil
}

// compareValues orders field values the way the server sorts mixed BSON
// types: null (or absent) first, then numbers, then strings, then booleans,
// then everything else by its printed form.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNull:
		return 0
	case rankNumber:
		na, nb := toFloat(a), toFloat(b)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case !ba && bb:
			return -1
		case ba && !bb:
			return 1
		}
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

const (
	rankNull = iota
	rankNumber
	rankString
	rankBool
	rankOther
)

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case int, int32, int64, float32, float64:
		return rankNumber
	case string:
		return rankString
	case bool:
		return rankBool
	default:
		return rankOther
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
