// Package pathextract implements the dot/bracket path dialect used to
// pull a value out of a parsed response body when the orchestrator
// injects one call's output into another's parameters. A path is
// parsed once into a step list rather than repeatedly string-replaced,
// so `value[0].plant` and `value[].material` compile to the same small
// instruction set the extractor walks.
package pathextract

import (
	"strconv"
	"strings"
)

type stepKind int

const (
	stepField stepKind = iota
	stepIndex
)

type step struct {
	kind  stepKind
	field string
	index int
}

// Path is a parsed extraction path, ready to be applied to any number of
// values via Extract.
type Path struct {
	steps []step
}

// Parse compiles a path like "resources.list[3].name" or "value[].material"
// into a Path. An empty `[]` selects index 0.
func Parse(raw string) Path {
	var steps []step
	for _, segment := range strings.Split(raw, ".") {
		if segment == "" {
			continue
		}
		field, indices := splitBrackets(segment)
		if field != "" {
			steps = append(steps, step{kind: stepField, field: field})
		}
		for _, idx := range indices {
			steps = append(steps, step{kind: stepIndex, index: idx})
		}
	}
	return Path{steps: steps}
}

// splitBrackets splits "list[3][]" into field "list" and indices [3, 0].
func splitBrackets(segment string) (string, []int) {
	open := strings.IndexByte(segment, '[')
	if open == -1 {
		return segment, nil
	}
	field := segment[:open]
	rest := segment[open:]

	var indices []int
	for len(rest) > 0 {
		if rest[0] != '[' {
			break
		}
		close := strings.IndexByte(rest, ']')
		if close == -1 {
			break
		}
		inner := rest[1:close]
		if inner == "" {
			indices = append(indices, 0)
		} else if n, err := strconv.Atoi(inner); err == nil {
			indices = append(indices, n)
		}
		rest = rest[close+1:]
	}
	return field, indices
}

// Extract walks value according to the compiled path, returning the
// value found and true, or nil/false if any segment is missing.
func Extract(value any, path Path) (any, bool) {
	current := value
	for _, s := range path.steps {
		switch s.kind {
		case stepField:
			m, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			current, ok = m[s.field]
			if !ok {
				return nil, false
			}
		case stepIndex:
			arr, ok := current.([]any)
			if !ok || s.index < 0 || s.index >= len(arr) {
				return nil, false
			}
			current = arr[s.index]
		}
	}
	return current, true
}

// ExtractString is Extract followed by the String(value) stringification
// applied when setting injectedParams[target].
func ExtractString(value any, path Path) (string, bool) {
	v, ok := Extract(value, path)
	if !ok || v == nil {
		return "", false
	}
	return Stringify(v), true
}

// Stringify mirrors JavaScript's String(value) coercion closely enough
// for the gateway's purposes: numbers without trailing ".0" noise,
// booleans as "true"/"false", strings verbatim.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}
