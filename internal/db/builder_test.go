package db

import (
	"strings"
	"testing"
)

func mustBuild(t *testing.T, b *IndexBuilder) *IndexDefinition {
	t.Helper()
	def, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return def
}

func restaurantIndex(dim int) *IndexBuilder {
	return NewIndex("pairfecto:restaurants:idx").
		Prefix("pairfecto:restaurant:").
		Tag("name").
		Numeric("rating").
		VectorHNSW("__vector", "vector", dim, DistanceCosine, 16, 200)
}

func TestIndexBuilder_Fields(t *testing.T) {
	def := mustBuild(t, restaurantIndex(384))

	if len(def.Fields) != 3 {
		t.Fatalf("fields = %d, want 3", len(def.Fields))
	}
	if def.Fields[0].Type != IndexFieldTag || def.Fields[1].Type != IndexFieldNumeric {
		t.Errorf("unexpected field types: %+v", def.Fields[:2])
	}
	v := def.Fields[2]
	if v.Alias != "vector" || v.VectorDim != 384 || v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("unexpected vector field: %+v", v)
	}
}

func TestIndexBuilder_BuildCopies(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first := mustBuild(t, b)
	b.Tag("b")
	if len(first.Fields) != 1 {
		t.Errorf("built definition changed after builder reuse: %+v", first.Fields)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Tag("x"), "index name is required"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"vector without dim", NewIndex("idx").VectorHNSW("v", "", 0, DistanceCosine, 0, 0), "positive DIM"},
		{"vector without metric", NewIndex("idx").VectorHNSW("v", "", 8, "", 0, 0), "distance metric"},
		{"invalid characters", NewIndex("bad name!").Tag("x"), "invalid characters"},
		{"duplicate field", NewIndex("idx").Tag("x").Numeric("x"), "duplicate field"},
		{"alias clash", NewIndex("idx").Tag("vector").VectorHNSW("__v", "vector", 4, DistanceCosine, 0, 0), "duplicate field"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want substring %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestIndexDefinition_Args(t *testing.T) {
	def := mustBuild(t, NewIndex("r:idx").
		Prefix("r:").
		Tag("name").
		VectorHNSW("__vector", "vector", 384, DistanceCosine, 16, 0))

	want := []string{
		"r:idx", "ON", "HASH", "PREFIX", "1", "r:", "SCHEMA",
		"name", "TAG",
		"__vector", "AS", "vector", "VECTOR", "HNSW", "8",
		"TYPE", "FLOAT32", "DIM", "384", "DISTANCE_METRIC", "COSINE", "M", "16",
	}
	got := def.Args()
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Args() =\n%v\nwant\n%v", got, want)
	}
	if def.String() != "FT.CREATE "+strings.Join(want, " ") {
		t.Errorf("String() = %q", def.String())
	}
}

func TestIndexDefinition_Fingerprint(t *testing.T) {
	a := mustBuild(t, restaurantIndex(384))
	b := mustBuild(t, restaurantIndex(384))

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical definitions must share a fingerprint")
	}
	if a.Fingerprint() == mustBuild(t, restaurantIndex(768)).Fingerprint() {
		t.Error("dimension change must alter the fingerprint")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(a.Fingerprint()))
	}
}

func TestError_Format(t *testing.T) {
	err := &Error{Op: OpHSet, Key: "pairfecto:restaurant:1", Err: ErrKeyNotFound}
	if got := err.Error(); got != "HSET pairfecto:restaurant:1: db: key not found" {
		t.Errorf("Error() = %q", got)
	}
	if (&Error{Op: OpGet, Err: ErrKeyNotFound}).Error() != "GET: db: key not found" {
		t.Error("unexpected format without key")
	}
}
