package db

import "testing"

func TestIndexBuilder_PageSchema(t *testing.T) {
	idx, err := NewIndex("pdfchat:ns:report:idx").
		Prefix("pdfchat:ns:report:").
		Numeric("page_number").
		Text("text").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if idx.Name != "pdfchat:ns:report:idx" {
		t.Errorf("name = %q", idx.Name)
	}
	if len(idx.Prefixes) != 1 || idx.Prefixes[0] != "pdfchat:ns:report:" {
		t.Errorf("prefixes = %v", idx.Prefixes)
	}
	if len(idx.Fields) != 3 {
		t.Fatalf("fields count = %d, want 3", len(idx.Fields))
	}
	if idx.Fields[0].Type != IndexFieldNumeric {
		t.Errorf("field[0] type = %v, want NUMERIC", idx.Fields[0].Type)
	}
	v := idx.Fields[2]
	if v.VectorAlgo != VectorHNSW || v.VectorDim != 1536 || v.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", v)
	}
	if v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("HNSW params = M %d EF %d", v.VectorM, v.VectorEFConstruct)
	}
}

func TestIndexBuilder_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    *IndexBuilder
	}{
		{"empty name", NewIndex("").Numeric("n")},
		{"invalid name", NewIndex("bad name!").Numeric("n")},
		{"no fields", NewIndex("idx")},
		{"duplicate field", NewIndex("idx").Numeric("n").Text("n")},
		{"zero dim", NewIndex("idx").VectorHNSW("vector", 0, DistanceCosine, 16, 200)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.b.Build(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestIsValidIdentifier(t *testing.T) {
	valid := []string{"my-report", "pdfchat:ns:a_b:idx", "X1"}
	for _, s := range valid {
		if !IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = false", s)
		}
	}
	invalid := []string{"", "a b", "a.b", "ünï", "a/b"}
	for _, s := range invalid {
		if IsValidIdentifier(s) {
			t.Errorf("IsValidIdentifier(%q) = true", s)
		}
	}
}
