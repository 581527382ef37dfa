// Package sqlsaber is the embedding API: open a database, ask questions in
// natural language, stream back answers and query results.
package sqlsaber

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sqlsaber/sqlsaber/internal/agent"
	"github.com/sqlsaber/sqlsaber/internal/config"
	"github.com/sqlsaber/sqlsaber/internal/db"
	"github.com/sqlsaber/sqlsaber/internal/knowledge"
	"github.com/sqlsaber/sqlsaber/internal/memory"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

// Options configures New. Only Database is required.
type Options struct {
	// Database is a connection string: postgresql://, mysql://, sqlite://,
	// csv://, or a bare file path.
	Database string

	// DatabaseName labels memories and knowledge entries. Derived from the
	// connection string when empty.
	DatabaseName string

	Config *config.Config

	// KnowledgeManager and MemoryStore override the default on-disk stores.
	// A provided KnowledgeManager is not closed by Close.
	KnowledgeManager *knowledge.Manager
	MemoryStore      *memory.Store

	Logger *slog.Logger
}

// Saber is one conversation session bound to one database.
type Saber struct {
	gateway db.Gateway
	agent   *agent.Agent

	knowledge     *knowledge.Manager
	ownsKnowledge bool
}

// New opens the database, the memory and knowledge stores, and builds the
// agent. Missing stores degrade their feature instead of failing the session.
func New(opts Options) (*Saber, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gw, err := db.Open(opts.Database)
	if err != nil {
		return nil, err
	}

	name := opts.DatabaseName
	if name == "" {
		name = DeriveDatabaseName(opts.Database)
	}

	memories := opts.MemoryStore
	if memories == nil {
		if path, err := memory.DefaultPath(); err == nil {
			memories = memory.NewStore(path)
		} else {
			logger.Warn("memory store unavailable", "error", err)
		}
	}

	km := opts.KnowledgeManager
	owns := false
	if km == nil {
		if path, err := knowledge.DefaultPath(); err == nil {
			store, err := knowledge.NewStore(path)
			if err != nil {
				logger.Warn("knowledge store unavailable", "error", err)
			} else {
				km = knowledge.NewManager(store)
				owns = true
			}
		} else {
			logger.Warn("knowledge store unavailable", "error", err)
		}
	}

	ag, err := agent.New(agent.Options{
		Gateway:          gw,
		DatabaseName:     name,
		Config:           opts.Config,
		MemoryStore:      memories,
		KnowledgeManager: km,
		Logger:           logger,
	})
	if err != nil {
		if owns && km != nil {
			km.Close()
		}
		gw.Close()
		return nil, err
	}

	return &Saber{gateway: gw, agent: ag, knowledge: km, ownsKnowledge: owns}, nil
}

// Query runs one prompt to completion and returns the assistant's text.
func (s *Saber) Query(ctx context.Context, prompt string) (string, error) {
	return s.agent.Query(ctx, prompt)
}

// QueryStream runs one prompt and streams typed events.
func (s *Saber) QueryStream(ctx context.Context, prompt string) <-chan models.StreamEvent {
	return s.agent.QueryStream(ctx, prompt)
}

// Agent exposes the underlying orchestrator for history and memory control.
func (s *Saber) Agent() *agent.Agent { return s.agent }

// Close releases the database connection and any store this session opened.
func (s *Saber) Close() error {
	var first error
	if s.ownsKnowledge && s.knowledge != nil {
		if err := s.knowledge.Close(); err != nil {
			first = err
		}
	}
	if err := s.gateway.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// DeriveDatabaseName extracts a short label from a connection string: the
// database component of a URL, or the file stem of a path.
func DeriveDatabaseName(connString string) string {
	s := strings.TrimSpace(connString)
	if i := strings.Index(s, "://"); i >= 0 {
		rest := s[i+3:]
		if j := strings.LastIndexByte(rest, '/'); j >= 0 && j < len(rest)-1 {
			rest = rest[j+1:]
		}
		if k := strings.IndexAny(rest, "?#"); k >= 0 {
			rest = rest[:k]
		}
		s = rest
	}
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	base := filepath.Base(s)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "." || base == "/" || base == "" {
		return "default"
	}
	return base
}
