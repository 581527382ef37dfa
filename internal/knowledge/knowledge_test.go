package knowledge

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func newManager(t *testing.T) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "knowledge.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewManager(store), path
}

func TestAddGetUpdateRemove(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	if _, err := m.Add(ctx, "shop", "  ", "desc", "", ""); err == nil {
		t.Fatal("blank name accepted")
	}

	e, err := m.Add(ctx, "shop", "revenue", "net revenue definition", "SELECT 1", "analyst")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if e.ID == "" || e.CreatedAt == 0 || e.CreatedAt != e.UpdatedAt {
		t.Fatalf("entry not populated: %+v", e)
	}

	got, err := m.Get(ctx, "shop", e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.SQL != "SELECT 1" || got.Source != "analyst" {
		t.Fatalf("get = %+v", got)
	}
	if got, _ := m.Get(ctx, "other", e.ID); got != nil {
		t.Fatal("entry visible under wrong database")
	}

	updated, err := m.Update(ctx, "shop", e.ID, "revenue v2", "updated", "", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated == nil || updated.Name != "revenue v2" || updated.SQL != "" {
		t.Fatalf("update = %+v", updated)
	}
	if updated.UpdatedAt <= e.CreatedAt {
		t.Fatalf("updated_at did not advance: %v <= %v", updated.UpdatedAt, e.CreatedAt)
	}
	if missing, err := m.Update(ctx, "shop", "nope", "n", "d", "", ""); err != nil || missing != nil {
		t.Fatalf("update missing = %+v, %v", missing, err)
	}

	if ok, err := m.Remove(ctx, "shop", e.ID); err != nil || !ok {
		t.Fatalf("remove = %v, %v", ok, err)
	}
	if ok, _ := m.Remove(ctx, "shop", e.ID); ok {
		t.Fatal("second remove reported a change")
	}
}

func TestListAndClear(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "a", "first", "", "")
	m.Add(ctx, "shop", "b", "second", "", "")
	m.Add(ctx, "analytics", "c", "third", "", "")

	entries, err := m.List(ctx, "shop")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("list = %d entries, want 2", len(entries))
	}

	n, err := m.Clear(ctx, "shop")
	if err != nil || n != 2 {
		t.Fatalf("clear = %d, %v", n, err)
	}
	if left, _ := m.List(ctx, "analytics"); len(left) != 1 {
		t.Fatalf("clear crossed databases: %+v", left)
	}
}

func TestSearchScopedToDatabase(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "revenue metric", "how monthly revenue is computed", "", "")
	m.Add(ctx, "analytics", "revenue events", "event stream for revenue", "", "")

	hits, err := m.Search(ctx, "shop", "revenue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].DatabaseName != "shop" {
		t.Fatalf("search leaked across databases: %+v", hits)
	}
}

func TestSearchFreeTextORJoin(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "churn", "customer churn definition", "", "")
	m.Add(ctx, "shop", "revenue", "monthly revenue definition", "", "")

	// Free tokens are OR-joined, so one matching token is enough.
	hits, err := m.Search(ctx, "shop", "quarterly churn", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "churn" {
		t.Fatalf("search = %+v", hits)
	}

	if hits, _ := m.Search(ctx, "shop", "   ", 10); hits != nil {
		t.Fatalf("blank query returned %+v", hits)
	}
}

func TestSearchRanksFullMatchesFirst(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "revenue", "monthly revenue definition", "", "")
	m.Add(ctx, "shop", "churn", "customer churn definition", "", "")
	m.Add(ctx, "shop", "churn revenue", "revenue lost to churn", "", "")

	// OR-joined tokens match all three, but the entry containing every
	// token must rank first (bm25 ascending, then recency).
	hits, err := m.Search(ctx, "shop", "churn revenue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("search = %d hits, want 3: %+v", len(hits), hits)
	}
	if hits[0].Name != "churn revenue" {
		t.Fatalf("full match ranked %q first: %+v", hits[0].Name, hits)
	}
}

func TestSearchOperatorPassthrough(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "churn", "customer churn definition", "", "")
	m.Add(ctx, "shop", "revenue churn", "churn impact on revenue", "", "")

	hits, err := m.Search(ctx, "shop", "churn AND revenue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "revenue churn" {
		t.Fatalf("AND query = %+v", hits)
	}
}

func TestSearchQuotedFallback(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "unbalanced ledger", "double entry check", "", "")

	// A dangling quote is passed through, fails to parse, and the quoted
	// token fallback recovers.
	hits, err := m.Search(ctx, "shop", `"unbalanced`, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "unbalanced ledger" {
		t.Fatalf("fallback = %+v", hits)
	}
}

func TestSearchPropagatesStoreFailures(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "revenue", "monthly revenue definition", "", "")
	m.Close()

	// A failing store is not "no matches": the error must surface instead
	// of being swallowed like a malformed MATCH expression.
	if _, err := m.Search(ctx, "shop", "revenue", 10); err == nil {
		t.Fatal("search on a closed store returned no error")
	}
}

func TestIsFTSQueryErr(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`fts5: syntax error near "\""`, true},
		{"malformed MATCH expression", true},
		{"unknown special query: rank", true},
		{"no such column: missing", true},
		{"sql: database is closed", false},
		{"no such table: knowledge_fts", false},
	}
	for _, tt := range tests {
		if got := isFTSQueryErr(errors.New(tt.msg)); got != tt.want {
			t.Fatalf("isFTSQueryErr(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestPrepareFTSQuery(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"revenue", "revenue"},
		{"monthly revenue total", "monthly OR revenue OR total"},
		{"churn AND revenue", "churn AND revenue"},
		{`"exact phrase"`, `"exact phrase"`},
		{"(a b)", "(a b)"},
	}
	for _, tt := range tests {
		if got := prepareFTSQuery(tt.in); got != tt.want {
			t.Fatalf("prepare(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLegacyIndexRebuild(t *testing.T) {
	m, path := newManager(t)
	ctx := context.Background()
	m.Add(ctx, "shop", "revenue", "monthly revenue definition", "", "")
	m.Close()

	// Simulate a legacy database whose index was never built.
	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	if _, err := raw.Exec("INSERT INTO knowledge_fts(knowledge_fts) VALUES ('delete-all')"); err != nil {
		t.Fatalf("empty index: %v", err)
	}
	raw.Close()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()

	hits, err := store.Search(ctx, "shop", "revenue", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("rebuild did not restore index: %+v", hits)
	}
}
