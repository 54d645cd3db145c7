package store

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// lookup returns the value at a dotted path.
func lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// assign sets the value at a dotted path, creating intermediate maps as
// needed. A non-map value in the way is replaced.
func assign(doc map[string]any, path string, v any) {
	segs := strings.Split(path, ".")
	cur := doc
	for _, seg := range segs[:len(segs)-1] {
		next, ok := asMap(cur[seg])
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = v
}

// planSet rewrites a patch for a store that can only set paths whose parent
// already exists. Each patch path is kept when its parent exists in doc;
// otherwise its leaves are folded into a map assigned at the shallowest
// missing ancestor. The result is keyed by dotted path.
func planSet(doc map[string]any, p Patch) map[string]any {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	plan := make(map[string]any, len(p))
	for _, path := range keys {
		segs := strings.Split(path, ".")
		missing := len(segs) - 1
		cur := doc
		for i, seg := range segs[:len(segs)-1] {
			next, ok := asMap(cur[seg])
			if !ok {
				missing = i
				break
			}
			cur = next
		}

		if missing == len(segs)-1 {
			plan[path] = p[path]
			continue
		}

		anchor := strings.Join(segs[:missing+1], ".")
		sub, ok := plan[anchor].(map[string]any)
		if !ok {
			sub = make(map[string]any)
			plan[anchor] = sub
		}
		assign(sub, strings.Join(segs[missing+1:], "."), p[path])
	}
	return plan
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	default:
		return nil, false
	}
}

// deepCopy copies maps and slices so stored documents cannot be mutated
// through values handed to or returned from a collection.
func deepCopy(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(deepCopyMap(t))
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

// valuesEqual compares two values the way a document store does: numbers
// by value regardless of their Go type, containers element by element.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, float64:
		return v
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case Document:
		return normalize(map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32:
		return rv.Float()
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = normalize(rv.Index(i).Interface())
		}
		return out
	}
	return v
}
