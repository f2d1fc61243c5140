package seed

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStringListAcceptsBothSpellings(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"array", `["연회비", "할인"]`, []string{"연회비", "할인"}},
		{"comma string", `"연회비, 할인,적립"`, []string{"연회비", "할인", "적립"}},
		{"single value", `"연회비"`, []string{"연회비"}},
		{"empty array", `[]`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got StringList
			if err := json.Unmarshal([]byte(tc.in), &got); err != nil {
				t.Fatalf("unmarshal %s: %v", tc.in, err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("element %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestStringListRejectsObjects(t *testing.T) {
	var got StringList
	if err := json.Unmarshal([]byte(`{"a": 1}`), &got); err == nil {
		t.Fatal("expected an error for an object value")
	}
}

func TestVectorLiteral(t *testing.T) {
	if got := VectorLiteral(nil); got != "" {
		t.Errorf("missing embedding should render empty, got %q", got)
	}

	got := VectorLiteral([]float64{0.25, -1, 0.001})
	if !strings.HasPrefix(got, "[") || !strings.HasSuffix(got, "]") {
		t.Fatalf("expected a bracketed literal, got %q", got)
	}
	if got != "[0.25,-1,0.001]" {
		t.Errorf("unexpected literal: %q", got)
	}
}

func TestExtractDocumentNumber(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"카드 이용약관 제15조 (연회비)", "제15조"},
		{"제3조 총칙", "제3조"},
		{"연회비 안내", ""},
	}
	for _, tc := range cases {
		if got := ExtractDocumentNumber(tc.title); got != tc.want {
			t.Errorf("ExtractDocumentNumber(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestPrepareMetadataStampsDocumentNumber(t *testing.T) {
	doc := Document{
		Title:    "이용약관 제7조",
		Metadata: map[string]any{"source": "terms"},
	}

	metadata := PrepareMetadata(doc)
	if metadata["document_number"] != "제7조" {
		t.Errorf("expected the clause number stamped, got %v", metadata["document_number"])
	}
	if metadata["source"] != "terms" {
		t.Error("existing metadata keys should be preserved")
	}
	if _, ok := doc.Metadata["document_number"]; ok {
		t.Error("the source document's metadata must not be mutated")
	}
}

func TestPrepareMetadataWithoutClauseNumber(t *testing.T) {
	metadata := PrepareMetadata(Document{Title: "연회비 안내"})
	if _, ok := metadata["document_number"]; ok {
		t.Error("no clause number should be stamped when the title has none")
	}
}

func TestDocumentContentFallsBackToText(t *testing.T) {
	d := Document{Text: "legacy body"}
	if d.content() != "legacy body" {
		t.Errorf("expected the text fallback, got %q", d.content())
	}

	d.Content = "current body"
	if d.content() != "current body" {
		t.Errorf("content should win over text, got %q", d.content())
	}
}

func TestJsonbArg(t *testing.T) {
	if got, err := jsonbArg(nil); err != nil || got != nil {
		t.Errorf("nil value should store NULL, got %v %v", got, err)
	}
	if got, err := jsonbArg(map[string]any{}); err != nil || got != nil {
		t.Errorf("empty map should store NULL, got %v %v", got, err)
	}

	got, err := jsonbArg(map[string]any{"fee": 30000})
	if err != nil {
		t.Fatalf("jsonbArg: %v", err)
	}
	if got != `{"fee":30000}` {
		t.Errorf("unexpected jsonb payload: %v", got)
	}
}

func TestNullable(t *testing.T) {
	if nullable("") != nil {
		t.Error("empty string should map to NULL")
	}
	if p := nullable("2024-01-01"); p == nil || *p != "2024-01-01" {
		t.Error("non-empty string should pass through")
	}
}
