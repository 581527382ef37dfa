package schema

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sqlsaber/sqlsaber/internal/db"
)

// DefaultTTL is how long cached schema structures stay fresh.
const DefaultTTL = 15 * time.Minute

// Manager answers schema questions for one gateway, caching results per
// filter pattern. The cache is pinned to the gateway so multi-database
// processes never cross-pollute.
type Manager struct {
	gw    db.Gateway
	intr  introspector
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	storedAt time.Time
	value    any
}

// NewManager builds a manager for the gateway's dialect. ttl <= 0 selects
// DefaultTTL.
func NewManager(gw db.Gateway, ttl time.Duration) (*Manager, error) {
	intr, err := introspectorFor(gw.Dialect())
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		gw:    gw,
		intr:  intr,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}, nil
}

// ClearCache drops every cached entry.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]cacheEntry)
}

// GetSchema returns table metadata, optionally filtered by a SQL LIKE
// pattern ("schema.table" or bare "table").
func (m *Manager) GetSchema(ctx context.Context, pattern string) (Info, error) {
	key := "schema:" + patternKey(pattern)
	if v, ok := m.cached(key); ok {
		return copyInfo(v.(Info)), nil
	}
	info, err := m.fetchSchema(ctx, pattern)
	if err != nil {
		return nil, err
	}
	m.store(key, info)
	// Callers get a copy on both paths so mutating the returned map never
	// poisons the cache.
	return copyInfo(info), nil
}

// ListTables returns a summary of all user tables.
func (m *Manager) ListTables(ctx context.Context) (*TableListing, error) {
	const key = "list_tables"
	if v, ok := m.cached(key); ok {
		return v.(*TableListing), nil
	}
	tables, err := m.intr.listTables(ctx, m.gw)
	if err != nil {
		return nil, err
	}
	listing := &TableListing{Tables: make([]TableSummary, 0, len(tables)), TotalTables: len(tables)}
	for _, t := range tables {
		listing.Tables = append(listing.Tables, TableSummary{
			Schema:   t.schema,
			Name:     t.name,
			FullName: fmt.Sprintf("%s.%s", t.schema, t.name),
			Kind:     t.kind,
		})
	}
	m.store(key, listing)
	return listing, nil
}

func (m *Manager) fetchSchema(ctx context.Context, pattern string) (Info, error) {
	tables, err := m.intr.tables(ctx, m.gw, pattern)
	if err != nil {
		return nil, err
	}
	columns, err := m.intr.columns(ctx, m.gw, tables)
	if err != nil {
		return nil, err
	}
	pks, err := m.intr.primaryKeys(ctx, m.gw, tables)
	if err != nil {
		return nil, err
	}
	fks, err := m.intr.foreignKeys(ctx, m.gw, tables)
	if err != nil {
		return nil, err
	}

	info := make(Info, len(tables))
	for _, t := range tables {
		info[t.schema+"."+t.name] = &Table{
			Schema:      t.schema,
			Name:        t.name,
			Kind:        t.kind,
			Columns:     make(map[string]Column),
			PrimaryKeys: []string{},
			ForeignKeys: []ForeignKey{},
		}
	}
	for _, c := range columns {
		t, ok := info[c.schema+"."+c.table]
		if !ok {
			continue
		}
		t.Columns[c.column] = Column{
			DataType:  c.dataType,
			Nullable:  c.nullable,
			Default:   c.dflt,
			MaxLength: c.maxLength,
			Precision: c.precision,
			Scale:     c.scale,
		}
	}
	for _, pk := range pks {
		if t, ok := info[pk.schema+"."+pk.table]; ok {
			t.PrimaryKeys = append(t.PrimaryKeys, pk.column)
		}
	}
	for _, fk := range fks {
		if t, ok := info[fk.schema+"."+fk.table]; ok {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Column: fk.column,
				References: Reference{
					Table:  fk.refSchema + "." + fk.refTable,
					Column: fk.refColumn,
				},
			})
		}
	}
	return info, nil
}

func (m *Manager) cached(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	if !ok || m.now().Sub(e.storedAt) >= m.ttl {
		return nil, false
	}
	return e.value, true
}

func (m *Manager) store(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cacheEntry{storedAt: m.now(), value: value}
}

func copyInfo(info Info) Info {
	out := make(Info, len(info))
	for k, v := range info {
		out[k] = v
	}
	return out
}

func patternKey(pattern string) string {
	if pattern == "" {
		return "all"
	}
	return pattern
}
