package config

import (
	"fmt"
	"sort"
	"strings"
)

// Thinking levels map onto provider reasoning budgets (tokens for
// Anthropic). Providers without an equivalent knob ignore the budget.
var thinkingBudgets = map[string]int64{
	"minimal": 1024,
	"low":     4096,
	"medium":  10000,
	"high":    32000,
	"maximum": 64000,
}

// ThinkingBudget converts a level name into a token budget.
func ThinkingBudget(level string) (int64, error) {
	budget, ok := thinkingBudgets[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return 0, fmt.Errorf("config: unknown thinking level %q (valid: %s)",
			level, strings.Join(ThinkingLevels(), ", "))
	}
	return budget, nil
}

// ThinkingLevels lists the valid level names sorted by budget.
func ThinkingLevels() []string {
	levels := make([]string, 0, len(thinkingBudgets))
	for level := range thinkingBudgets {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return thinkingBudgets[levels[i]] < thinkingBudgets[levels[j]]
	})
	return levels
}
