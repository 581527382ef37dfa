package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sqlsaber/sqlsaber/internal/agent/providers"
	"github.com/sqlsaber/sqlsaber/internal/config"
	"github.com/sqlsaber/sqlsaber/internal/db"
	"github.com/sqlsaber/sqlsaber/internal/memory"
	"github.com/sqlsaber/sqlsaber/pkg/models"
)

// chunkClient replays one scripted chunk sequence per Stream call. When the
// scripts run out it parks until the context is cancelled, which is how the
// cancellation tests hold a turn open.
type chunkClient struct {
	scripts  [][]*providers.Chunk
	requests []*providers.Request

	// beforeFinal runs before the last chunk of each script is delivered,
	// so tests can cancel at a deterministic point mid-stream.
	beforeFinal func()
}

func (c *chunkClient) Name() string { return "scripted" }

func (c *chunkClient) Stream(ctx context.Context, req *providers.Request) (<-chan *providers.Chunk, error) {
	c.requests = append(c.requests, req)
	out := make(chan *providers.Chunk)
	if len(c.scripts) == 0 {
		go func() {
			<-ctx.Done()
			out <- &providers.Chunk{Err: ctx.Err()}
			close(out)
		}()
		return out, nil
	}
	script := c.scripts[0]
	c.scripts = c.scripts[1:]
	go func() {
		for i, chunk := range script {
			if i == len(script)-1 && c.beforeFinal != nil {
				c.beforeFinal()
			}
			out <- chunk
		}
		close(out)
	}()
	return out, nil
}

func textTurn(text string) []*providers.Chunk {
	return []*providers.Chunk{
		{Text: text},
		{Response: &providers.Response{
			Blocks:     []models.ContentBlock{models.TextBlock(text)},
			StopReason: models.StopEndTurn,
		}},
	}
}

func toolTurn(id, name, input string) []*providers.Chunk {
	return []*providers.Chunk{
		{ToolUse: &models.ToolCall{ID: id, Name: name}},
		{Response: &providers.Response{
			Blocks:     []models.ContentBlock{models.ToolUseBlock(id, name, json.RawMessage(input))},
			StopReason: models.StopToolUse,
		}},
	}
}

func newTestAgent(t *testing.T, client providers.Client, cfg *config.Config) *Agent {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	// Seed outside the gateway: gateway statements always roll back.
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	seed := []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)",
		"INSERT INTO users (id, name) VALUES (1, 'ada'), (2, 'bob')",
	}
	for _, stmt := range seed {
		if _, err := raw.Exec(stmt); err != nil {
			t.Fatalf("seed %q: %v", stmt, err)
		}
	}
	raw.Close()

	gw, err := db.Open(path)
	if err != nil {
		t.Fatalf("open gateway: %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	a, err := New(Options{
		Gateway:      gw,
		DatabaseName: "test",
		Config:       cfg,
		Client:       client,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func collect(t *testing.T, events <-chan models.StreamEvent) []models.StreamEvent {
	t.Helper()
	var out []models.StreamEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func eventTypes(events []models.StreamEvent) []models.EventType {
	types := make([]models.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestQueryStreamTextOnly(t *testing.T) {
	client := &chunkClient{scripts: [][]*providers.Chunk{textTurn("Two users.")}}
	a := newTestAgent(t, client, nil)

	events := collect(t, a.QueryStream(context.Background(), "how many users?"))
	if len(events) != 1 || events[0].Type != models.EventText || events[0].Text != "Two users." {
		t.Fatalf("events = %+v", events)
	}

	history := a.History()
	if len(history) != 2 {
		t.Fatalf("history = %+v", history)
	}
	if history[0].Role != models.RoleUser || history[0].Text != "how many users?" {
		t.Fatalf("user turn = %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant {
		t.Fatalf("assistant turn = %+v", history[1])
	}

	req := client.requests[0]
	if req.System == "" || len(req.Tools) == 0 {
		t.Fatalf("request missing prompt or tools: %+v", req)
	}
}

func TestQueryStreamToolLoop(t *testing.T) {
	client := &chunkClient{scripts: [][]*providers.Chunk{
		toolTurn("toolu_1", "execute_sql", `{"query": "SELECT name FROM users ORDER BY id"}`),
		textTurn("Found ada and bob."),
	}}
	a := newTestAgent(t, client, nil)

	events := collect(t, a.QueryStream(context.Background(), "list user names"))
	want := []models.EventType{
		models.EventToolUse, // started
		models.EventToolUse, // executing
		models.EventQueryResult,
		models.EventProcessing,
		models.EventText,
	}
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("events = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d] = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
	if events[0].Status != models.ToolUseStarted || events[1].Status != models.ToolUseExecuting {
		t.Fatalf("tool_use statuses = %q, %q", events[0].Status, events[1].Status)
	}

	qr := events[2]
	if qr.Query != "SELECT name FROM users ORDER BY id" {
		t.Fatalf("query = %q", qr.Query)
	}
	if len(qr.Rows) != 2 || qr.Rows[0]["name"] != "ada" {
		t.Fatalf("rows = %+v", qr.Rows)
	}

	history := a.History()
	if len(history) != 4 {
		t.Fatalf("history turns = %d", len(history))
	}
	results := history[2].Results
	if len(results) != 1 || results[0].ToolCallID != "toolu_1" {
		t.Fatalf("tool results = %+v", results)
	}
	if !strings.Contains(results[0].Content, `"success":true`) {
		t.Fatalf("result content = %q", results[0].Content)
	}

	// The second model turn must see the assistant turn and its results.
	second := client.requests[1].Turns
	if len(second) != 3 || second[1].Role != models.RoleAssistant || len(second[2].Results) != 1 {
		t.Fatalf("second request turns = %+v", second)
	}
}

func TestQueryStreamEmitsToolResultForSchemaTools(t *testing.T) {
	client := &chunkClient{scripts: [][]*providers.Chunk{
		toolTurn("toolu_1", "list_tables", `{}`),
		textTurn("One table."),
	}}
	a := newTestAgent(t, client, nil)

	events := collect(t, a.QueryStream(context.Background(), "what tables exist?"))
	var found bool
	for _, ev := range events {
		if ev.Type == models.EventToolResult {
			found = true
			if ev.ToolName != "list_tables" || !strings.Contains(ev.Payload, "users") {
				t.Fatalf("tool_result = %+v", ev)
			}
		}
	}
	if !found {
		t.Fatalf("no tool_result event: %v", eventTypes(events))
	}
}

func TestQueryStreamErrorEvent(t *testing.T) {
	client := &chunkClient{scripts: [][]*providers.Chunk{
		{{Err: errFake}},
	}}
	a := newTestAgent(t, client, nil)

	events := collect(t, a.QueryStream(context.Background(), "hi"))
	if len(events) != 1 || events[0].Type != models.EventError {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Text != "provider exploded" {
		t.Fatalf("error text = %q", events[0].Text)
	}
	if len(a.History()) != 0 {
		t.Fatalf("failed run committed history: %+v", a.History())
	}
}

var errFake = &fakeErr{}

type fakeErr struct{}

func (*fakeErr) Error() string { return "provider exploded" }

func TestQueryStreamCancellationKeepsPairing(t *testing.T) {
	// One tool turn, then the script runs out and the client parks until
	// the context is cancelled.
	client := &chunkClient{scripts: [][]*providers.Chunk{
		toolTurn("toolu_1", "execute_sql", `{"query": "SELECT 1 AS one"}`),
	}}
	a := newTestAgent(t, client, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := a.QueryStream(ctx, "anything")

	var seen []models.StreamEvent
	for ev := range events {
		seen = append(seen, ev)
		if ev.Type == models.EventProcessing {
			cancel()
		}
	}
	cancel()

	for _, ev := range seen {
		if ev.Type == models.EventError {
			t.Fatalf("cancellation produced an error event: %+v", ev)
		}
	}

	// The completed tool batch is committed; no dangling tool_use.
	history := a.History()
	if len(history) != 3 {
		t.Fatalf("history turns = %d", len(history))
	}
	if len(history[2].Results) != 1 || history[2].Results[0].ToolCallID != "toolu_1" {
		t.Fatalf("final turn = %+v", history[2])
	}
}

func TestCancelBeforeToolBatchLeavesHistoryUnchanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The model requests a tool, but the context is cancelled before the
	// final response chunk arrives, so no tool ever runs.
	client := &chunkClient{scripts: [][]*providers.Chunk{
		toolTurn("toolu_1", "execute_sql", `{"query": "SELECT 1 AS one"}`),
	}}
	client.beforeFinal = cancel
	a := newTestAgent(t, client, nil)

	events := collect(t, a.QueryStream(ctx, "anything"))
	for _, ev := range events {
		switch ev.Type {
		case models.EventError:
			t.Fatalf("cancellation produced an error event: %+v", ev)
		case models.EventQueryResult, models.EventToolResult:
			t.Fatalf("tool executed after cancellation: %+v", ev)
		}
		if ev.Type == models.EventToolUse && ev.Status == models.ToolUseExecuting {
			t.Fatalf("tool dispatched after cancellation: %+v", ev)
		}
	}

	if history := a.History(); len(history) != 0 {
		t.Fatalf("cancelled run committed %d turns: %+v", len(history), history)
	}
}

func TestQueryCollectsText(t *testing.T) {
	client := &chunkClient{scripts: [][]*providers.Chunk{
		{
			{Text: "Hello"},
			{Text: ", world"},
			{Response: &providers.Response{
				Blocks:     []models.ContentBlock{models.TextBlock("Hello, world")},
				StopReason: models.StopEndTurn,
			}},
		},
	}}
	a := newTestAgent(t, client, nil)

	text, err := a.Query(context.Background(), "greet")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if text != "Hello, world" {
		t.Fatalf("text = %q", text)
	}
}

func TestSystemPromptAssembly(t *testing.T) {
	client := &chunkClient{}
	a := newTestAgent(t, client, nil)

	base := a.SystemPrompt(true)
	if !strings.Contains(base, "SQLite database") {
		t.Fatalf("prompt missing engine name: %q", base[:80])
	}
	if strings.Contains(base, "DANGEROUS MODE") {
		t.Fatal("dangerous rider present by default")
	}

	a.allowDangerous = true
	if !strings.Contains(a.SystemPrompt(true), "DANGEROUS MODE IS ENABLED") {
		t.Fatal("dangerous rider missing")
	}
	a.allowDangerous = false

	// A whitespace-only override is ignored.
	a.promptOverride = "   \n "
	if !strings.Contains(a.SystemPrompt(true), "SQLite database") {
		t.Fatal("blank override replaced the template")
	}
	a.promptOverride = "You only speak SQL."
	if got := a.SystemPrompt(true); got != "You only speak SQL." {
		t.Fatalf("override prompt = %q", got)
	}
}

func TestSystemPromptUsesGPTTemplateForOpenAI(t *testing.T) {
	cfg := config.Default()
	cfg.ModelName = "openai:gpt-5-mini"
	a := newTestAgent(t, &chunkClient{}, cfg)

	prompt := a.SystemPrompt(false)
	if !strings.Contains(prompt, "Workflow:") {
		t.Fatalf("expected GPT template, got %q", prompt[:60])
	}
}

func TestSystemPromptMemorySemantics(t *testing.T) {
	a := newTestAgent(t, &chunkClient{}, nil)
	store := memory.NewStore(filepath.Join(t.TempDir(), "memories.json"))
	a.memories = store

	if _, err := a.AddMemory("revenue is stored in cents"); err != nil {
		t.Fatalf("AddMemory: %v", err)
	}
	prompt := a.SystemPrompt(true)
	if !strings.Contains(prompt, "Database Memories") || !strings.Contains(prompt, "revenue is stored in cents") {
		t.Fatalf("memories not injected:\n%s", prompt)
	}
	if strings.Contains(a.SystemPrompt(false), "Database Memories") {
		t.Fatal("includeMemory=false still injected memories")
	}

	// A non-nil empty override disables injection entirely.
	empty := ""
	a.memoryOverride = &empty
	if strings.Contains(a.SystemPrompt(true), "Database Memories") {
		t.Fatal("empty override did not disable memories")
	}

	custom := "  only trust the ledger table  "
	a.memoryOverride = &custom
	prompt = a.SystemPrompt(true)
	if !strings.Contains(prompt, "only trust the ledger table") {
		t.Fatalf("override memory not injected:\n%s", prompt)
	}
	if strings.Contains(prompt, "revenue is stored in cents") {
		t.Fatal("override must replace stored memories")
	}
}

func TestSetThinking(t *testing.T) {
	a := newTestAgent(t, &chunkClient{}, nil)
	if a.thinkingBudget != 0 {
		t.Fatalf("budget = %d", a.thinkingBudget)
	}
	if err := a.SetThinking(true, "high"); err != nil || a.thinkingBudget != 32000 {
		t.Fatalf("budget = %d, %v", a.thinkingBudget, err)
	}
	if err := a.SetThinking(true, ""); err != nil || a.thinkingBudget != 32000 {
		t.Fatalf("enable without level reset budget: %d", a.thinkingBudget)
	}
	if err := a.SetThinking(false, ""); err != nil || a.thinkingBudget != 0 {
		t.Fatalf("disable failed: %d", a.thinkingBudget)
	}
	if err := a.SetThinking(true, "warp"); err == nil {
		t.Fatal("unknown level accepted")
	}
}

func TestClearHistory(t *testing.T) {
	client := &chunkClient{scripts: [][]*providers.Chunk{textTurn("ok")}}
	a := newTestAgent(t, client, nil)
	if _, err := a.Query(context.Background(), "hi"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(a.History()) == 0 {
		t.Fatal("no history after run")
	}
	a.ClearHistory()
	if len(a.History()) != 0 {
		t.Fatal("history survived clear")
	}
}
