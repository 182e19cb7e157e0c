package store

import (
	"context"
	"sort"
	"sync"

	"pelorus/internal/domain"
)

// Memory keeps tables in process memory. Used by tests and local runs; the
// production gateway talks to postgres through the gorm client.
type Memory struct {
	mu     sync.Mutex
	tables map[string]map[string]Row
	seq    map[string]int
	order  map[string]map[string]int
}

func NewMemory() *Memory {
	return &Memory{
		tables: make(map[string]map[string]Row),
		seq:    make(map[string]int),
		order:  make(map[string]map[string]int),
	}
}

func (m *Memory) Select(_ context.Context, table string, filter Filter, limit, offset int) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.tables[table]))
	for id, row := range m.tables[table] {
		if matches(row, filter) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.order[table][ids[i]] < m.order[table][ids[j]]
	})

	if offset > 0 {
		if offset >= len(ids) {
			return []Row{}, nil
		}
		ids = ids[offset:]
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneRow(m.tables[table][id]))
	}
	return out, nil
}

func (m *Memory) Get(_ context.Context, table, id string) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.tables[table][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRow(row), nil
}

func (m *Memory) Insert(_ context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, _ := row["id"].(string)
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]Row)
		m.order[table] = make(map[string]int)
	}
	m.seq[table]++
	m.tables[table][id] = cloneRow(row)
	m.order[table][id] = m.seq[table]
	return cloneRow(row), nil
}

func (m *Memory) Update(_ context.Context, table, id string, fields Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.tables[table][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for k, v := range fields {
		row[k] = v
	}
	return cloneRow(row), nil
}

func (m *Memory) Delete(_ context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[table][id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.tables[table], id)
	delete(m.order[table], id)
	return nil
}

func matches(row Row, filter Filter) bool {
	for k, want := range filter {
		if row[k] != want {
			return false
		}
	}
	return true
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
