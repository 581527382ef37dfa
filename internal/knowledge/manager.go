package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager is the high-level knowledge API used by the tools and the CLI. It
// validates input and owns entry identity and timestamps; the store only
// persists.
type Manager struct {
	store *Store
}

// NewManager wraps a store.
func NewManager(store *Store) *Manager {
	return &Manager{store: store}
}

// Close releases the store.
func (m *Manager) Close() error { return m.store.Close() }

// Add validates and stores a new entry.
func (m *Manager) Add(ctx context.Context, database, name, description, sqlText, source string) (*Entry, error) {
	name, err := required(name, "name")
	if err != nil {
		return nil, err
	}
	description, err = required(description, "description")
	if err != nil {
		return nil, err
	}
	now := unixNow()
	e := &Entry{
		ID:           uuid.NewString(),
		DatabaseName: database,
		Name:         name,
		Description:  description,
		SQL:          strings.TrimSpace(sqlText),
		Source:       strings.TrimSpace(source),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Add(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns an entry by id, or nil when absent.
func (m *Manager) Get(ctx context.Context, database, id string) (*Entry, error) {
	return m.store.Get(ctx, database, id)
}

// List returns all entries for a database, most recently updated first.
func (m *Manager) List(ctx context.Context, database string) ([]Entry, error) {
	return m.store.ListAll(ctx, database)
}

// Update rewrites an entry's fields. Returns the updated entry, or nil when
// the id does not exist.
func (m *Manager) Update(ctx context.Context, database, id, name, description, sqlText, source string) (*Entry, error) {
	current, err := m.store.Get(ctx, database, id)
	if err != nil || current == nil {
		return nil, err
	}
	current.Name, err = required(name, "name")
	if err != nil {
		return nil, err
	}
	current.Description, err = required(description, "description")
	if err != nil {
		return nil, err
	}
	current.SQL = strings.TrimSpace(sqlText)
	current.Source = strings.TrimSpace(source)
	current.UpdatedAt = unixNow()

	ok, err := m.store.Update(ctx, current)
	if err != nil || !ok {
		return nil, err
	}
	return current, nil
}

// Remove deletes an entry and reports whether it existed.
func (m *Manager) Remove(ctx context.Context, database, id string) (bool, error) {
	return m.store.Remove(ctx, database, id)
}

// Clear deletes every entry for a database.
func (m *Manager) Clear(ctx context.Context, database string) (int, error) {
	return m.store.Clear(ctx, database)
}

// Search returns matching entries scoped to the database.
func (m *Manager) Search(ctx context.Context, database, query string, limit int) ([]Entry, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	return m.store.Search(ctx, database, query, limit)
}

// FormatForPrompt renders search results for inclusion in a model prompt.
func FormatForPrompt(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", e.Name, e.Description)
		if e.SQL != "" {
			fmt.Fprintf(&b, "  SQL: %s\n", e.SQL)
		}
		if e.Source != "" {
			fmt.Fprintf(&b, "  Source: %s\n", e.Source)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func required(value, field string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("knowledge %s cannot be empty", field)
	}
	return value, nil
}

func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
