package store

import (
	"sort"
	"time"
)

// FieldValue resolves a dotted field path against document data. Missing
// fields resolve to nil.
func FieldValue(data map[string]any, fieldPath string) any {
	current := any(data)
	rest := fieldPath
	for rest != "" {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		dot := indexDot(rest)
		if dot < 0 {
			return m[rest]
		}
		current = m[rest[:dot]]
		rest = rest[dot+1:]
	}
	return current
}

// MatchesFilters reports whether document data satisfies every filter.
func MatchesFilters(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		value := FieldValue(data, f.Field)
		switch f.Op {
		case "==":
			if CompareValues(value, f.Value) != 0 {
				return false
			}
		case "in":
			if !valueIn(value, f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func valueIn(value any, candidates any) bool {
	switch cs := candidates.(type) {
	case []any:
		for _, c := range cs {
			if CompareValues(value, c) == 0 {
				return true
			}
		}
	case []string:
		for _, c := range cs {
			if CompareValues(value, c) == 0 {
				return true
			}
		}
	}
	return false
}

// SortDocuments orders documents by the given orderings, comparing field
// values. Ties keep their relative input order.
func SortDocuments(docs []Document, order []Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range order {
			cmp := CompareValues(FieldValue(docs[i].Data, o.Field), FieldValue(docs[j].Data, o.Field))
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// CompareValues orders two document field values. Nil sorts first. Numbers
// compare numerically across int/int64/float64; times compare as instants
// whether held as time.Time or RFC 3339 strings.
func CompareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}

	if at, aok := asTime(a); aok {
		if bt, bok := asTime(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			default:
				return 1
			}
		}
	}

	// Incomparable types only order deterministically enough for equality.
	return -1
}

func asTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
