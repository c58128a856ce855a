// Package dedupe recognises standings posts identical to the previous one.
package dedupe

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/scoreboard/internal/domain/types"
)

// Deduper remembers the digest of the last accepted post.
type Deduper interface {
	// SeenAndRecord atomically compares id with the last accepted id and records it
	// when it differs. Returns true if id equals the last accepted id.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord rolls back the recording of id so that the same content can be
	// stored again. Use it when the content was recorded but storing it failed.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Digest returns the content digest of a row set.
func Digest(rows []types.RawRow) (string, error) {
	b, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

// inMemoryDeduper only ever compares against the most recently accepted id, so a
// post that reverts to older content is always accepted.
type inMemoryDeduper struct {
	mu       sync.Mutex
	disabled bool

	last    string
	hasLast bool
	prev    string
	hasPrev bool
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	if d.disabled {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hasLast && d.last == id {
		return true
	}
	d.prev, d.hasPrev = d.last, d.hasLast
	d.last, d.hasLast = id, true
	return false
}

// Unrecord implements Deduper. Only the latest recording can be rolled back.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hasLast || d.last != id {
		return
	}
	d.last, d.hasLast = d.prev, d.hasPrev
	d.prev, d.hasPrev = "", false
}

// Size returns 1 while an accepted id is remembered, else 0.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasLast {
		return 1
	}
	return 0
}
