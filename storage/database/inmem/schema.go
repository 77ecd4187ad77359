package inmemdb

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/volatiletech/null/v8"

	"github.com/slotwise/slotwise/core"
	"github.com/slotwise/slotwise/core/schema"
)

type table struct {
	columns []schema.Column
	rows    [][]null.String
}

// SchemaStore keeps department schemas in memory. Used by tests and local runs without postgres.
type SchemaStore struct {
	mu      sync.RWMutex
	schemas map[string]map[string]*table
}

var _ schema.Store = (*SchemaStore)(nil)

func NewSchemaStore() *SchemaStore {
	return &SchemaStore{schemas: make(map[string]map[string]*table)}
}

func (s *SchemaStore) ListSchemas(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *SchemaStore) CreateSchema(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[name]; !ok {
		s.schemas[name] = make(map[string]*table)
	}
	return nil
}

func (s *SchemaStore) DropSchema(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schemas[name]; !ok {
		return schema.ErrSchemaNotFound
	}
	delete(s.schemas, name)
	return nil
}

func (s *SchemaStore) ListTables(_ context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables, ok := s.schemas[name]
	if !ok {
		return nil, schema.ErrSchemaNotFound
	}
	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)
	return names, nil
}

// get must be called with the lock held.
func (s *SchemaStore) get(schemaName, tableName string) (*table, error) {
	tables, ok := s.schemas[schemaName]
	if !ok {
		return nil, schema.ErrSchemaNotFound
	}
	t, ok := tables[tableName]
	if !ok {
		return nil, schema.ErrTableNotFound
	}
	return t, nil
}

var idColumn = schema.Column{Name: "id", Type: schema.TypeInteger, Nullable: false, Key: "PRI"}

func (s *SchemaStore) DescribeTable(_ context.Context, schemaName, tableName string) ([]schema.Column, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.get(schemaName, tableName)
	if err != nil {
		return nil, err
	}
	return append([]schema.Column{idColumn}, t.columns...), nil
}

func (s *SchemaStore) CountRows(_ context.Context, schemaName, tableName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.get(schemaName, tableName)
	if err != nil {
		return 0, err
	}
	return len(t.rows), nil
}

func (s *SchemaStore) QueryRows(_ context.Context, schemaName, tableName string, ordering []core.DBOrdering, page core.Page) ([]schema.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.get(schemaName, tableName)
	if err != nil {
		return nil, err
	}

	rows := make([]schema.Row, len(t.rows))
	for i, values := range t.rows {
		row := schema.Row{"id": i + 1}
		for j, col := range t.columns {
			row[col.Name] = schema.CellValue(col, values[j])
		}
		rows[i] = row
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(rows[i][ord.Field], rows[j][ord.Field])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})

	if page.Offset >= len(rows) {
		return []schema.Row{}, nil
	}
	rows = rows[page.Offset:]
	if page.Limit > 0 && page.Limit < len(rows) {
		rows = rows[:page.Limit]
	}
	return rows, nil
}

// compare orders NULLs last, like postgres does for ascending sorts.
func compare(a, b interface{}) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	ai, aok := a.(int)
	bi, bok := b.(int)
	if aok && bok {
		return ai - bi
	}
	as, bs := toString(a), toString(b)
	return strings.Compare(as, bs)
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val)
	case string:
		return val
	}
	return ""
}

func (s *SchemaStore) ReadTable(_ context.Context, schemaName, tableName string) (*schema.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.get(schemaName, tableName)
	if err != nil {
		return nil, err
	}
	out := &schema.Table{Name: tableName, Columns: append([]schema.Column{}, t.columns...)}
	for _, row := range t.rows {
		out.Rows = append(out.Rows, append([]null.String{}, row...))
	}
	return out, nil
}

func (s *SchemaStore) ReplaceTable(_ context.Context, schemaName string, t *schema.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, ok := s.schemas[schemaName]
	if !ok {
		return schema.ErrSchemaNotFound
	}
	nt := &table{columns: append([]schema.Column{}, t.Columns...)}
	for _, row := range t.Rows {
		nt.rows = append(nt.rows, append([]null.String{}, row...))
	}
	tables[t.Name] = nt
	return nil
}

func (s *SchemaStore) AppendTable(ctx context.Context, schemaName string, t *schema.Table) error {
	s.mu.Lock()
	tables, ok := s.schemas[schemaName]
	if !ok {
		s.mu.Unlock()
		return schema.ErrSchemaNotFound
	}
	existing, ok := tables[t.Name]
	if !ok {
		s.mu.Unlock()
		return s.ReplaceTable(ctx, schemaName, t)
	}
	defer s.mu.Unlock()

	idx := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		idx[i] = -1
		for j, ecol := range existing.columns {
			if ecol.Name == col.Name {
				idx[i] = j
				break
			}
		}
		if idx[i] < 0 {
			existing.columns = append(existing.columns, col)
			for r := range existing.rows {
				existing.rows[r] = append(existing.rows[r], null.String{})
			}
			idx[i] = len(existing.columns) - 1
		}
	}
	for _, row := range t.Rows {
		nrow := make([]null.String, len(existing.columns))
		for i, v := range row {
			nrow[idx[i]] = v
		}
		existing.rows = append(existing.rows, nrow)
	}
	return nil
}

func (s *SchemaStore) DropTable(_ context.Context, schemaName, tableName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, ok := s.schemas[schemaName]
	if !ok {
		return schema.ErrSchemaNotFound
	}
	delete(tables, tableName)
	return nil
}
