package core

import (
	"context"
	"errors"
)

// ErrObjectExists is wrapped by stores when CREATE TABLE hits an existing
// object of the same name (a view, an index, a table created concurrently).
var ErrObjectExists = errors.New("object already exists")

// ErrRowInsert marks a store failure that affects only the row being
// inserted. The row is rejected and never retried.
var ErrRowInsert = errors.New("insert failed")

// ColumnDef is one column of a table to create.
type ColumnDef struct {
	Name    string
	Type    Type
	SQLType string
}

// TableDef is a table to create.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ExistingColumn is a column of a table already in the store.
type ExistingColumn struct {
	Name    string
	SQLType string
}

// Table is the handle rows are inserted through. Columns are the store's
// column names in insert order.
type Table struct {
	Name    string
	Columns []string
}

// Store is the relational store an import writes into.
type Store interface {
	// ColumnType maps an inferred type to the dialect's column type.
	ColumnType(t Type) string

	// Columns describes an existing table. found is false when no table of
	// that name exists.
	Columns(ctx context.Context, table string) (cols []ExistingColumn, found bool, err error)

	CreateTable(ctx context.Context, def TableDef) error
	DropTable(ctx context.Context, table string) error

	// Begin opens a write batch for table.
	Begin(ctx context.Context, table Table) (Batch, error)
}

// Batch is a unit of inserts committed together. A failed Insert must leave
// the batch usable for the next row, and a batch whose context is cancelled
// mid-way must still commit the rows it holds.
type Batch interface {
	Insert(ctx context.Context, values []any) error
	Commit(ctx context.Context) error
}

// WriteGate serializes store writes across concurrent import sessions.
// A nil *WriteGate never blocks.
type WriteGate struct {
	ch chan struct{}
}

// NewWriteGate returns an unlocked gate.
func NewWriteGate() *WriteGate {
	return &WriteGate{ch: make(chan struct{}, 1)}
}

// Lock waits for the gate or for ctx to end.
func (g *WriteGate) Lock(ctx context.Context) error {
	if g == nil {
		return nil
	}
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases a gate taken with Lock.
func (g *WriteGate) Unlock() {
	if g == nil {
		return
	}
	<-g.ch
}
