package pathextract

import "testing"

func TestExtract_SimpleField(t *testing.T) {
	v := map[string]any{"plant": "1010"}
	got, ok := Extract(v, Parse("plant"))
	if !ok || got != "1010" {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestExtract_IndexedArray(t *testing.T) {
	v := map[string]any{"value": []any{
		map[string]any{"plant": "1010"},
		map[string]any{"plant": "2020"},
	}}
	got, ok := Extract(v, Parse("value[0].plant"))
	if !ok || got != "1010" {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestExtract_EmptyBracketDefaultsToIndexZero(t *testing.T) {
	v := map[string]any{"value": []any{
		map[string]any{"material": "M-1"},
	}}
	got, ok := Extract(v, Parse("value[].material"))
	if !ok || got != "M-1" {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestExtract_DeepNestedPath(t *testing.T) {
	v := map[string]any{"resources": map[string]any{
		"list": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b"},
			map[string]any{"name": "c"},
			map[string]any{"name": "d"},
		},
	}}
	got, ok := Extract(v, Parse("resources.list[3].name"))
	if !ok || got != "d" {
		t.Fatalf("got %v, %v", got, ok)
	}
}

func TestExtract_MissingSegmentYieldsUndefined(t *testing.T) {
	v := map[string]any{"value": []any{map[string]any{"plant": "1010"}}}

	if _, ok := Extract(v, Parse("value[5].plant")); ok {
		t.Fatal("expected out-of-range index to be undefined")
	}
	if _, ok := Extract(v, Parse("value[0].missing")); ok {
		t.Fatal("expected missing field to be undefined")
	}
	if _, ok := Extract(v, Parse("not.even.close")); ok {
		t.Fatal("expected missing top-level field to be undefined")
	}
}

func TestExtract_NonObjectShortCircuits(t *testing.T) {
	v := map[string]any{"value": "a-string-not-an-object"}
	if _, ok := Extract(v, Parse("value.plant")); ok {
		t.Fatal("expected field access on a string to fail")
	}
}

func TestExtractString_Stringifies(t *testing.T) {
	v := map[string]any{"count": float64(42), "active": true, "name": "widget"}

	if got, ok := ExtractString(v, Parse("count")); !ok || got != "42" {
		t.Fatalf("got %q, %v", got, ok)
	}
	if got, ok := ExtractString(v, Parse("active")); !ok || got != "true" {
		t.Fatalf("got %q, %v", got, ok)
	}
	if got, ok := ExtractString(v, Parse("name")); !ok || got != "widget" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestExtractString_UndefinedNotStringified(t *testing.T) {
	v := map[string]any{}
	if _, ok := ExtractString(v, Parse("missing")); ok {
		t.Fatal("expected missing value to remain unresolved, not \"undefined\"")
	}
}
