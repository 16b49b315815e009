package backend

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend is an in-memory simulation of the backend collections.
// It applies inserts, updates and deletes to its own rows and records every
// call for assertions in unit tests.
type MemoryBackend struct {
	mu     sync.Mutex
	tables map[string][]map[string]any
	calls  []Call
	fail   func(Call) error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tables: make(map[string][]map[string]any),
	}
}

// Seed adds rows to collection.
func (b *MemoryBackend) Seed(collection string, rows ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range rows {
		b.tables[collection] = append(b.tables[collection], copyRow(r))
	}
}

// FailWith installs fn to decide per call whether it fails. A nil fn
// clears it. Failed calls are still recorded.
func (b *MemoryBackend) FailWith(fn func(Call) error) {
	b.mu.Lock()
	b.fail = fn
	b.mu.Unlock()
}

// Rows returns a copy of the rows in collection.
func (b *MemoryBackend) Rows(collection string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := make([]map[string]any, len(b.tables[collection]))
	for i, r := range b.tables[collection] {
		rows[i] = copyRow(r)
	}
	return rows
}

// Calls returns the recorded calls in order.
func (b *MemoryBackend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallsMade returns the number of calls made to this backend.
func (b *MemoryBackend) CallsMade() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

// Reset clears all rows, recorded calls and the failure hook.
func (b *MemoryBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables = make(map[string][]map[string]any)
	b.calls = nil
	b.fail = nil
}

// record tracks the call and reports an injected failure, if any.
// Callers hold b.mu.
func (b *MemoryBackend) record(ctx context.Context, c Call) error {
	b.calls = append(b.calls, c)
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.fail != nil {
		return b.fail(c)
	}
	return nil
}

// Insert implements Backend.
func (b *MemoryBackend) Insert(ctx context.Context, collection string, record map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(ctx, Call{Op: OpInsert, Collection: collection, Values: copyRow(record)}); err != nil {
		return err
	}
	b.tables[collection] = append(b.tables[collection], copyRow(record))
	return nil
}

// Update implements Backend. Matching no rows returns ErrNotFound.
func (b *MemoryBackend) Update(ctx context.Context, collection string, filter Filter, values map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(ctx, Call{Op: OpUpdate, Collection: collection, Filter: copyFilter(filter), Values: copyRow(values)}); err != nil {
		return err
	}

	matched := 0
	for _, row := range b.tables[collection] {
		if filter.Matches(row) {
			for k, v := range values {
				row[k] = v
			}
			matched++
		}
	}
	if matched == 0 {
		return fmt.Errorf("update %s: %w", collection, ErrNotFound)
	}
	return nil
}

// Delete implements Backend. Matching no rows returns ErrNotFound.
func (b *MemoryBackend) Delete(ctx context.Context, collection string, filter Filter) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.record(ctx, Call{Op: OpDelete, Collection: collection, Filter: copyFilter(filter)}); err != nil {
		return err
	}

	rows := b.tables[collection]
	kept := rows[:0]
	for _, row := range rows {
		if !filter.Matches(row) {
			kept = append(kept, row)
		}
	}
	if len(kept) == len(rows) {
		return fmt.Errorf("delete %s: %w", collection, ErrNotFound)
	}
	b.tables[collection] = kept
	return nil
}

// copyRow creates a shallow copy of a row.
func copyRow(row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	result := make(map[string]any, len(row))
	for k, v := range row {
		result[k] = v
	}
	return result
}

func copyFilter(f Filter) Filter {
	return Filter(copyRow(f))
}
