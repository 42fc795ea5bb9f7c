package query

import (
	"strings"
	"testing"
)

func TestParse_BareWords(t *testing.T) {
	pq, err := Parse("permanent revolution theory")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.SemanticTerms) != 3 {
		t.Fatalf("expected 3 semantic terms, got %v", pq.SemanticTerms)
	}
}

func TestParse_ExactPhrase(t *testing.T) {
	pq, err := Parse(`"permanent revolution" trotsky`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.ExactPhrases) != 1 || pq.ExactPhrases[0] != "permanent revolution" {
		t.Fatalf("unexpected exact phrases: %v", pq.ExactPhrases)
	}
	if len(pq.SemanticTerms) != 1 || pq.SemanticTerms[0] != "trotsky" {
		t.Fatalf("unexpected semantic terms: %v", pq.SemanticTerms)
	}
}

func TestParse_TitleField(t *testing.T) {
	pq, err := Parse(`title:"state and revolution"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.TitlePhrases) != 1 || pq.TitlePhrases[0] != "state and revolution" {
		t.Fatalf("unexpected title phrases: %v", pq.TitlePhrases)
	}
}

func TestParse_AuthorField(t *testing.T) {
	pq, err := Parse(`author:"Alan Woods" dialectics`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pq.HasAuthor || pq.AuthorFilter != "Alan Woods" {
		t.Fatalf("unexpected author filter: %+v", pq)
	}
	if len(pq.SemanticTerms) != 1 || pq.SemanticTerms[0] != "dialectics" {
		t.Fatalf("unexpected semantic terms: %v", pq.SemanticTerms)
	}
}

func TestParse_FieldCaseInsensitive(t *testing.T) {
	pq, err := Parse(`TITLE:"Das Kapital"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.TitlePhrases) != 1 || pq.TitlePhrases[0] != "Das Kapital" {
		t.Fatalf("expected case-insensitive field match, got %+v", pq)
	}
}

func TestParse_UnknownFieldTreatedAsWords(t *testing.T) {
	pq, err := Parse(`category:"economics"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.TitlePhrases) != 0 || pq.HasAuthor {
		t.Fatalf("unknown field should not populate a filter: %+v", pq)
	}
	if len(pq.SemanticTerms) == 0 {
		t.Fatalf("unknown field name should fall back to a semantic term, got %+v", pq)
	}
}

func TestParse_UnterminatedQuoteDoesNotPanic(t *testing.T) {
	pq, err := Parse(`"unterminated phrase continues`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.ExactPhrases) != 0 {
		t.Fatalf("unterminated quote should not produce an exact phrase, got %v", pq.ExactPhrases)
	}
	if len(pq.SemanticTerms) == 0 {
		t.Fatalf("unterminated quote contents should fall back to words, got %+v", pq)
	}
}

func TestParse_NullBytesStripped(t *testing.T) {
	pq, err := Parse("trotsky\x00ism")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	joined := strings.Join(pq.SemanticTerms, "")
	if strings.Contains(joined, "\x00") {
		t.Fatalf("expected null bytes stripped, got %v", pq.SemanticTerms)
	}
}

func TestParse_TooLong(t *testing.T) {
	long := strings.Repeat("a ", MaxQueryLength)
	_, err := Parse(long)
	if err != ErrQueryTooLong {
		t.Fatalf("expected ErrQueryTooLong, got %v", err)
	}
}

func TestParse_EmptyQuery(t *testing.T) {
	pq, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pq.SemanticTerms) != 0 || len(pq.ExactPhrases) != 0 || pq.HasAuthor {
		t.Fatalf("expected empty parsed query, got %+v", pq)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	cases := []string{
		`author:"Alan Woods" dialectics`,
		`title:"state and revolution"`,
		`"permanent revolution" trotsky leninism`,
		`bare words only here`,
	}
	for _, c := range cases {
		pq, err := Parse(c)
		if err != nil {
			t.Fatalf("parse %q: %v", c, err)
		}
		rendered := Render(pq)
		pq2, err := Parse(rendered)
		if err != nil {
			t.Fatalf("reparse %q: %v", rendered, err)
		}
		if !equalParsed(pq, pq2) {
			t.Fatalf("round trip mismatch for %q: %+v vs %+v", c, pq, pq2)
		}
	}
}

func equalParsed(a, b ParsedQuery) bool {
	if a.HasAuthor != b.HasAuthor || a.AuthorFilter != b.AuthorFilter {
		return false
	}
	return strings.Join(a.SemanticTerms, "|") == strings.Join(b.SemanticTerms, "|") &&
		strings.Join(a.ExactPhrases, "|") == strings.Join(b.ExactPhrases, "|") &&
		strings.Join(a.TitlePhrases, "|") == strings.Join(b.TitlePhrases, "|")
}
