package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// memStore is an in-memory Store for pipeline tests. Rows become visible
// on Commit only.
type memStore struct {
	mu     sync.Mutex
	defs   map[string]TableDef
	rows   map[string][][]any
	commit int

	// rejectInsert, if set, fails the insert of any row it returns true for.
	rejectInsert func(values []any) bool
	// beginErr, if set, is returned from every Begin.
	beginErr error
	// insertErr, if set, is returned from every Insert.
	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		defs: make(map[string]TableDef),
		rows: make(map[string][][]any),
	}
}

func (m *memStore) ColumnType(t Type) string { return t.String() }

func (m *memStore) Columns(_ context.Context, table string) ([]ExistingColumn, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.defs[strings.ToLower(table)]
	if !ok {
		return nil, false, nil
	}
	cols := make([]ExistingColumn, len(def.Columns))
	for i, c := range def.Columns {
		cols[i] = ExistingColumn{Name: c.Name, SQLType: c.SQLType}
	}
	return cols, true, nil
}

func (m *memStore) CreateTable(_ context.Context, def TableDef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(def.Name)
	if _, ok := m.defs[key]; ok {
		return fmt.Errorf("table %s: %w", def.Name, ErrObjectExists)
	}
	m.defs[key] = def
	return nil
}

func (m *memStore) DropTable(_ context.Context, table string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(table)
	delete(m.defs, key)
	delete(m.rows, key)
	return nil
}

func (m *memStore) Begin(_ context.Context, table Table) (Batch, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return &memBatch{store: m, table: strings.ToLower(table.Name)}, nil
}

func (m *memStore) table(name string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.rows[strings.ToLower(name)]...)
}

func (m *memStore) def(name string) (TableDef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.defs[strings.ToLower(name)]
	return d, ok
}

func (m *memStore) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commit
}

type memBatch struct {
	store *memStore
	table string
	rows  [][]any
	done  bool
}

func (b *memBatch) Insert(_ context.Context, values []any) error {
	if b.done {
		return errors.New("batch closed")
	}
	if b.store.insertErr != nil {
		return b.store.insertErr
	}
	if b.store.rejectInsert != nil && b.store.rejectInsert(values) {
		return errors.New("constraint failed")
	}
	b.rows = append(b.rows, append([]any(nil), values...))
	return nil
}

func (b *memBatch) Commit(_ context.Context) error {
	if b.done {
		return errors.New("batch closed")
	}
	b.done = true
	b.store.mu.Lock()
	b.store.rows[b.table] = append(b.store.rows[b.table], b.rows...)
	b.store.commit++
	b.store.mu.Unlock()
	return nil
}
