// Package tools defines the agent tool contract and the built-in tools the
// orchestrator exposes to the model: schema inspection, SQL execution,
// knowledge search, and visualization.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sqlsaber/sqlsaber/internal/agent/providers"
	"github.com/sqlsaber/sqlsaber/internal/db"
	"github.com/sqlsaber/sqlsaber/internal/knowledge"
	"github.com/sqlsaber/sqlsaber/internal/schema"
)

// Tool is one named capability offered to the model. Execute always returns
// a JSON-encoded string; runtime failures are encoded as {"error": ...}
// payloads so the model can observe them and recover. The error return is
// reserved for broken invocations (nil deps, malformed registry state).
type Tool interface {
	Name() string
	Description() string
	Schema() json.RawMessage
	Execute(ctx context.Context, deps *Deps, call Call) (string, error)
}

// Call carries the identity and arguments of one tool invocation.
type Call struct {
	// ID is the provider-assigned tool call ID. It keys captured results.
	ID    string
	Input json.RawMessage
}

// Deps is the run-scoped dependency bag handed to every tool execution.
// Tools read from it instead of carrying shared mutable state, so instances
// stay reusable across runs of one orchestrator but never across agents.
type Deps struct {
	Gateway          db.Gateway
	SchemaManager    *schema.Manager
	DatabaseName     string
	KnowledgeManager *knowledge.Manager

	// AllowDangerous lifts the write-operation gate in execute_sql.
	// Statements still run inside a rolled-back transaction.
	AllowDangerous bool

	// Results caches execute_sql payloads for the lifetime of one agent so
	// later tools can reference them by result handle.
	Results *ResultCache

	// SpecClient and SpecModel drive the visualization sub-agent. SpecModel
	// may be empty for the client default.
	SpecClient providers.Client
	SpecModel  string
}

// ResultCache stores tool output payloads keyed by tool call ID.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[string]string)}
}

func (c *ResultCache) Put(id, payload string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = payload
}

func (c *ResultCache) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, ok := c.entries[id]
	return payload, ok
}

// registry maps tool names to factories. Factories, not instances: tools
// may buffer per-run state, and sharing instances across agents would leak
// it.
var registry = struct {
	mu        sync.RWMutex
	factories map[string]func() Tool
}{factories: make(map[string]func() Tool)}

// Register adds a tool factory under its name. Later registrations replace
// earlier ones.
func Register(name string, factory func() Tool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// Names lists registered tool names sorted.
func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateAll instantiates a fresh tool per registered factory.
func CreateAll() map[string]Tool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make(map[string]Tool, len(registry.factories))
	for name, factory := range registry.factories {
		out[name] = factory()
	}
	return out
}

// Create instantiates one tool by name.
func Create(name string) (Tool, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tools: unknown tool: %s", name)
	}
	return factory(), nil
}

// Defs converts tools into the provider wire description, sorted by name so
// prompts stay stable.
func Defs(set map[string]Tool) []providers.ToolDef {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]providers.ToolDef, 0, len(names))
	for _, name := range names {
		t := set[name]
		defs = append(defs, providers.ToolDef{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	return defs
}

func errorJSON(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return errorJSON(err.Error())
	}
	return string(b)
}
