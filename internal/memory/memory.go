// Package memory persists free-form per-database notes that get injected
// into the agent's system prompt.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one stored note, scoped to a database name.
type Entry struct {
	ID           string    `json:"id"`
	DatabaseName string    `json:"database_name"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store reads and writes the memories file. Every operation loads and
// rewrites the whole file; the file is small and this keeps it consistent
// without a daemon.
type Store struct {
	path string
	mu   sync.Mutex
}

// DefaultPath is the per-user memories file location.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "sqlsaber", "memories.json"), nil
}

// NewStore opens a store at path. The file is created lazily on first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Add appends a note for the database and returns the stored entry.
func (s *Store) Add(database, content string) (*Entry, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("memory content is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	e := Entry{
		ID:           uuid.NewString(),
		DatabaseName: database,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
	}
	entries = append(entries, e)
	if err := s.save(entries); err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns the entries for a database in insertion order.
func (s *Store) List(database string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		if e.DatabaseName == database {
			out = append(out, e)
		}
	}
	return out, nil
}

// Remove deletes an entry by ID. It reports whether anything was removed.
func (s *Store) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	kept := entries[:0]
	removed := false
	for _, e := range entries {
		if e.ID == id {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	if !removed {
		return false, nil
	}
	return true, s.save(kept)
}

// Clear deletes all entries for a database and returns how many went away.
func (s *Store) Clear(database string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := entries[:0]
	removed := 0
	for _, e := range entries {
		if e.DatabaseName == database {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, s.save(kept)
}

// FormatForPrompt renders the database's notes as a bullet list for verbatim
// injection into the system prompt. Empty when there are no notes.
func (s *Store) FormatForPrompt(database string) (string, error) {
	entries, err := s.List(database)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s\n", e.Content)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Store) load() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memories: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse memories: %w", err)
	}
	return entries, nil
}

func (s *Store) save(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create memories dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write memories: %w", err)
	}
	return os.Rename(tmp, s.path)
}
