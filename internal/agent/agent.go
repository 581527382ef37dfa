// Package agent implements the conversation orchestrator: it drives a
// streaming LLM client, executes the tools the model requests, maintains
// conversation history, and emits typed stream events for consumers.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sqlsaber/sqlsaber/internal/agent/providers"
	"github.com/sqlsaber/sqlsaber/internal/config"
	"github.com/sqlsaber/sqlsaber/internal/db"
	"github.com/sqlsaber/sqlsaber/internal/knowledge"
	"github.com/sqlsaber/sqlsaber/internal/memory"
	"github.com/sqlsaber/sqlsaber/internal/schema"
	"github.com/sqlsaber/sqlsaber/internal/tools"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

// ClientFactory builds a streaming client for a provider. Split out so tests
// can inject scripted clients without touching the network.
type ClientFactory func(provider, model, apiKey string) (providers.Client, error)

// NewClient is the default ClientFactory.
func NewClient(provider, model, apiKey string) (providers.Client, error) {
	switch provider {
	case config.ProviderAnthropic:
		return providers.NewAnthropicClient(providers.AnthropicConfig{APIKey: apiKey, DefaultModel: model})
	case config.ProviderOpenAI:
		return providers.NewOpenAIClient(providers.OpenAIConfig{APIKey: apiKey, DefaultModel: model})
	}
	return nil, fmt.Errorf("agent: no client for provider %q", provider)
}

// Options configures a new Agent.
type Options struct {
	Gateway      db.Gateway
	DatabaseName string
	Config       *config.Config

	MemoryStore      *memory.Store
	KnowledgeManager *knowledge.Manager

	// Client, when set, is used directly and ClientFactory is ignored.
	Client        providers.Client
	ClientFactory ClientFactory

	Logger *slog.Logger
}

// Agent orchestrates one conversation against one database.
type Agent struct {
	client providers.Client
	model  string

	gateway       db.Gateway
	databaseName  string
	schemaManager *schema.Manager
	memories      *memory.Store
	knowledge     *knowledge.Manager

	allowDangerous bool
	useGPTPrompt   bool
	memoryOverride *string
	promptOverride string
	thinkingBudget int64

	toolset    map[string]tools.Tool
	results    *tools.ResultCache
	specClient providers.Client
	specModel  string

	mu      sync.Mutex
	history []models.Turn

	logger *slog.Logger
}

// New builds an agent from resolved configuration. The gateway is required;
// every other dependency is optional and degrades the matching feature.
func New(opts Options) (*Agent, error) {
	if opts.Gateway == nil {
		return nil, errors.New("agent: gateway is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	provider, model, err := config.ParseModelName(cfg.ModelName)
	if err != nil {
		return nil, err
	}

	factory := opts.ClientFactory
	if factory == nil {
		factory = NewClient
	}
	client := opts.Client
	if client == nil {
		key, err := cfg.ResolveAPIKey()
		if err != nil {
			return nil, err
		}
		client, err = factory(provider, model, key)
		if err != nil {
			return nil, err
		}
	}

	mgr, err := schema.NewManager(opts.Gateway, time.Duration(cfg.CacheTTL)*time.Second)
	if err != nil {
		return nil, err
	}

	var budget int64
	if cfg.ThinkingEnabled {
		level := cfg.ThinkingLevel
		if level == "" {
			level = "medium"
		}
		budget, err = config.ThinkingBudget(level)
		if err != nil {
			return nil, err
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &Agent{
		client:         client,
		model:          model,
		gateway:        opts.Gateway,
		databaseName:   opts.DatabaseName,
		schemaManager:  mgr,
		memories:       opts.MemoryStore,
		knowledge:      opts.KnowledgeManager,
		allowDangerous: cfg.AllowDangerous,
		useGPTPrompt:   provider == config.ProviderOpenAI,
		memoryOverride: cfg.Memory,
		promptOverride: cfg.SystemPrompt,
		thinkingBudget: budget,
		toolset:        tools.CreateAll(),
		results:        tools.NewResultCache(),
		specClient:     client,
		specModel:      model,
		logger:         logger.With("component", "agent"),
	}

	if override := cfg.ToolOverrides["viz"]; override != nil && override.ModelName != "" {
		specProvider, specModel, err := config.ParseModelName(override.ModelName)
		if err != nil {
			return nil, err
		}
		key := override.APIKey
		if key == "" {
			if key, err = config.LookupAPIKey(specProvider); err != nil {
				return nil, err
			}
		}
		specClient, err := factory(specProvider, specModel, key)
		if err != nil {
			return nil, err
		}
		a.specClient = specClient
		a.specModel = specModel
	}

	return a, nil
}

// SystemPrompt assembles the prompt sent with every model turn. A non-blank
// configured override replaces the built-in template; dangerous mode and the
// memory section are appended either way.
func (a *Agent) SystemPrompt(includeMemory bool) string {
	base := strings.TrimSpace(a.promptOverride)
	if base == "" {
		template := claudeBasePrompt
		if a.useGPTPrompt {
			template = gptBasePrompt
		}
		base = fmt.Sprintf(template, a.gateway.DisplayName())
	}
	if a.allowDangerous {
		base += dangerousRider
	}
	if includeMemory {
		if mem := a.memoryText(); mem != "" {
			base += "\n\n" + memorySection + "\n\n" + mem
		}
	}
	return base
}

// memoryText resolves the memory section. A non-nil configured override wins
// even when empty, which is how callers disable injection entirely.
func (a *Agent) memoryText() string {
	if a.memoryOverride != nil {
		return strings.TrimSpace(*a.memoryOverride)
	}
	if a.memories == nil || a.databaseName == "" {
		return ""
	}
	text, err := a.memories.FormatForPrompt(a.databaseName)
	if err != nil {
		a.logger.Warn("loading memories failed", "database", a.databaseName, "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// AddMemory persists a note for the active database. The next model turn
// picks it up because the prompt is assembled per turn.
func (a *Agent) AddMemory(content string) (*memory.Entry, error) {
	if a.memories == nil {
		return nil, errors.New("agent: no memory store configured")
	}
	if a.databaseName == "" {
		return nil, errors.New("agent: no active database to attach the memory to")
	}
	return a.memories.Add(a.databaseName, content)
}

// SetThinking toggles extended thinking. An empty level with enabled=true
// keeps the previous budget, or medium when none was set.
func (a *Agent) SetThinking(enabled bool, level string) error {
	if !enabled {
		a.thinkingBudget = 0
		return nil
	}
	if level == "" {
		if a.thinkingBudget > 0 {
			return nil
		}
		level = "medium"
	}
	budget, err := config.ThinkingBudget(level)
	if err != nil {
		return err
	}
	a.thinkingBudget = budget
	return nil
}

// History returns a copy of the committed conversation.
func (a *Agent) History() []models.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Turn(nil), a.history...)
}

// ClearHistory drops the conversation but keeps caches and memories.
func (a *Agent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

func (a *Agent) commit(turns []models.Turn) {
	if len(turns) == 0 {
		return
	}
	a.mu.Lock()
	a.history = append(a.history, turns...)
	a.mu.Unlock()
}

func (a *Agent) deps() *tools.Deps {
	return &tools.Deps{
		Gateway:          a.gateway,
		SchemaManager:    a.schemaManager,
		DatabaseName:     a.databaseName,
		KnowledgeManager: a.knowledge,
		AllowDangerous:   a.allowDangerous,
		Results:          a.results,
		SpecClient:       a.specClient,
		SpecModel:        a.specModel,
	}
}
