package core

import (
	"context"
	"errors"
	"fmt"
)

// Loader inserts typed rows in arrival order, committing every batchSize
// rows. The write gate is held from the first insert of a batch until its
// commit, so concurrent sessions interleave whole batches.
type Loader struct {
	store     Store
	gate      *WriteGate
	table     Table
	batchSize int64

	batch   Batch
	pending int64
	loaded  int64
}

// NewLoader returns a loader writing into table.
func NewLoader(store Store, gate *WriteGate, table Table, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{store: store, gate: gate, table: table, batchSize: int64(batchSize)}
}

// Add inserts one row. An error wrapping ErrRowInsert affects only this row;
// any other error is fatal to the import. A done context is always fatal,
// even when the store reports it as an insert failure.
func (l *Loader) Add(ctx context.Context, values []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.batch == nil {
		if err := l.gate.Lock(ctx); err != nil {
			return err
		}
		b, err := l.store.Begin(ctx, l.table)
		if err != nil {
			l.gate.Unlock()
			return fmt.Errorf("begin batch: %w", err)
		}
		l.batch = b
	}

	if err := l.batch.Insert(ctx, values); err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrRowInsert, err)
	}
	l.pending++

	if l.pending >= l.batchSize {
		return l.Flush(ctx)
	}
	return nil
}

// Flush commits the open batch, if any.
func (l *Loader) Flush(ctx context.Context) error {
	if l.batch == nil {
		return nil
	}
	b := l.batch
	l.batch = nil
	defer l.gate.Unlock()

	pending := l.pending
	l.pending = 0
	if err := b.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	l.loaded += pending
	return nil
}

// Loaded returns the number of committed rows.
func (l *Loader) Loaded() int64 { return l.loaded }

// Pending returns the number of inserted but uncommitted rows.
func (l *Loader) Pending() int64 { return l.pending }
