package viz

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one record of a result set keyed by column name.
type Row = map[string]any

// ApplyTransforms runs the transform pipeline over rows in order. The input
// slice is never mutated.
func ApplyTransforms(rows []Row, transforms []Transform) []Row {
	result := append([]Row(nil), rows...)
	for _, t := range transforms {
		switch {
		case len(t.Sort) > 0:
			result = applySort(result, t.Sort)
		case t.Limit > 0:
			if t.Limit < len(result) {
				result = result[:t.Limit]
			}
		case t.Filter != nil:
			result = applyFilter(result, t.Filter)
		}
	}
	return result
}

// applySort orders rows by multiple fields. Keys are applied last-first so
// the first key dominates; rows with a nil or missing value always sink to
// the end, even for descending keys.
func applySort(rows []Row, sorts []SortItem) []Row {
	result := append([]Row(nil), rows...)
	for i := len(sorts) - 1; i >= 0; i-- {
		field := sorts[i].Field
		sort.SliceStable(result, func(a, b int) bool {
			return lessSortKey(result[a][field], result[b][field])
		})
		if sorts[i].Dir == "desc" {
			reverseRows(result)
		}
		result = nilsLast(result, field)
	}
	return result
}

func applyFilter(rows []Row, filter *FilterConfig) []Row {
	var kept []Row
	for _, row := range rows {
		if compareValues(row[filter.Field], filter.Op, filter.Value) {
			kept = append(kept, row)
		}
	}
	return kept
}

func reverseRows(rows []Row) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

func nilsLast(rows []Row, field string) []Row {
	present := make([]Row, 0, len(rows))
	var absent []Row
	for _, row := range rows {
		if row[field] == nil {
			absent = append(absent, row)
		} else {
			present = append(present, row)
		}
	}
	return append(present, absent...)
}

// Sort keys rank numbers before times before strings, with nils last.
const (
	tierNumber = iota
	tierTime
	tierString
	tierNil
)

type sortKey struct {
	tier int
	num  float64
	tm   time.Time
	str  string
}

func makeSortKey(value any) sortKey {
	if value == nil {
		return sortKey{tier: tierNil}
	}
	if n, ok := coerceNumber(value); ok {
		return sortKey{tier: tierNumber, num: n}
	}
	if t, ok := coerceTime(value); ok {
		return sortKey{tier: tierTime, tm: t}
	}
	return sortKey{tier: tierString, str: strings.ToLower(stringify(value))}
}

func lessSortKey(a, b any) bool {
	ka, kb := makeSortKey(a), makeSortKey(b)
	if ka.tier != kb.tier {
		return ka.tier < kb.tier
	}
	switch ka.tier {
	case tierNumber:
		return ka.num < kb.num
	case tierTime:
		return ka.tm.Before(kb.tm)
	case tierString:
		return ka.str < kb.str
	}
	return false
}

// compareValues evaluates value op target. Equality falls back to raw
// comparison after numeric and time coercion; ordered comparisons require
// both sides coercible to the same tier and are otherwise false.
func compareValues(value any, op string, target any) bool {
	if op == "==" || op == "!=" {
		eq := valuesEqual(value, target)
		if op == "==" {
			return eq
		}
		return !eq
	}

	if ln, lok := coerceNumber(value); lok {
		if rn, rok := coerceNumber(target); rok {
			return orderedHolds(ln, rn, op)
		}
	}
	if lt, lok := coerceTime(value); lok {
		if rt, rok := coerceTime(target); rok {
			switch op {
			case ">":
				return lt.After(rt)
			case "<":
				return lt.Before(rt)
			case ">=":
				return !lt.Before(rt)
			case "<=":
				return !lt.After(rt)
			}
		}
	}
	return false
}

func valuesEqual(value, target any) bool {
	if value == nil || target == nil {
		return value == nil && target == nil
	}
	if ln, lok := coerceNumber(value); lok {
		if rn, rok := coerceNumber(target); rok {
			return ln == rn
		}
	}
	if lt, lok := coerceTime(value); lok {
		if rt, rok := coerceTime(target); rok {
			return lt.Equal(rt)
		}
	}
	return stringify(value) == stringify(target) && sameKind(value, target)
}

func orderedHolds(left, right float64, op string) bool {
	switch op {
	case ">":
		return left > right
	case "<":
		return left < right
	case ">=":
		return left >= right
	case "<=":
		return left <= right
	}
	return false
}

// sameKind guards the stringified equality fallback so "true" never equals
// the boolean true.
func sameKind(a, b any) bool {
	switch a.(type) {
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return true
}

// coerceNumber converts numeric types and numeric strings to float64.
// Booleans are not numbers.
func coerceNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case bool:
		return 0, false
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

var yearMonthPattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// isoLayouts covers the ISO 8601 shapes result values arrive in, with and
// without zone, with T or space separators, plus bare dates.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		normalized := v
		if strings.HasSuffix(v, "Z") {
			normalized = v[:len(v)-1] + "+00:00"
		}
		if t, ok := parseISOTime(normalized); ok {
			return t, true
		}
		if yearMonthPattern.MatchString(v) {
			if t, ok := parseISOTime(v + "-01"); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseISOTime(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	if n, ok := coerceNumber(value); ok {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return ""
}
