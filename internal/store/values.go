package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// incrementValue marks an update value as an atomic numeric delta.
type incrementValue struct {
	delta int64
}

// Increment returns a sentinel that atomically adds delta to the current
// numeric value of a field (missing fields count as zero).
func Increment(delta int64) any {
	return incrementValue{delta: delta}
}

// arrayUnionValue marks an update value as append-if-absent.
type arrayUnionValue struct {
	elems []any
}

// ArrayUnion returns a sentinel that appends the given elements to an array
// field, skipping elements already present.
func ArrayUnion(elems ...any) any {
	return arrayUnionValue{elems: elems}
}

// serverTimestampValue marks an update value to be resolved to the store's
// current time at write application.
type serverTimestampValue struct{}

// ServerTimestamp returns a sentinel resolved to the write time.
func ServerTimestamp() any {
	return serverTimestampValue{}
}

// ResolveData returns a copy of data with write-time sentinels resolved.
// Increment and ArrayUnion are not legal in full-document writes.
func ResolveData(data map[string]any, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case serverTimestampValue:
			out[key] = now
		case incrementValue, arrayUnionValue:
			return nil, fmt.Errorf("field %q: sentinel requires a field update", key)
		case map[string]any:
			nested, err := ResolveData(v, now)
			if err != nil {
				return nil, err
			}
			out[key] = nested
		default:
			out[key] = value
		}
	}
	return out, nil
}

// ApplyUpdates applies a partial update to a document in place. Keys are
// dotted field paths; intermediate maps are created as needed. Sentinel
// values are resolved against the current field contents and now.
func ApplyUpdates(data map[string]any, fields map[string]any, now time.Time) error {
	for fieldPath, value := range fields {
		if err := applyField(data, fieldPath, value, now); err != nil {
			return fmt.Errorf("field %q: %w", fieldPath, err)
		}
	}
	return nil
}

func applyField(data map[string]any, fieldPath string, value any, now time.Time) error {
	target := data
	rest := fieldPath
	for {
		dot := indexDot(rest)
		if dot < 0 {
			break
		}
		key := rest[:dot]
		rest = rest[dot+1:]
		child, ok := target[key].(map[string]any)
		if !ok {
			child = make(map[string]any)
			target[key] = child
		}
		target = child
	}

	switch v := value.(type) {
	case serverTimestampValue:
		target[rest] = now
	case incrementValue:
		current, err := asInt64(target[rest])
		if err != nil {
			return err
		}
		target[rest] = current + v.delta
	case arrayUnionValue:
		merged, err := unionInto(target[rest], v.elems)
		if err != nil {
			return err
		}
		target[rest] = merged
	default:
		target[rest] = value
	}
	return nil
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

func asInt64(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	case json.Number:
		return v.Int64()
	default:
		return 0, fmt.Errorf("cannot increment %T", value)
	}
}

func unionInto(existing any, elems []any) ([]any, error) {
	var out []any
	switch v := existing.(type) {
	case nil:
		out = make([]any, 0, len(elems))
	case []any:
		out = v
	case []string:
		out = make([]any, 0, len(v)+len(elems))
		for _, s := range v {
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("cannot array-union into %T", existing)
	}

	for _, elem := range elems {
		present := false
		for _, have := range out {
			if CompareValues(have, elem) == 0 {
				present = true
				break
			}
		}
		if !present {
			out = append(out, elem)
		}
	}
	return out, nil
}
