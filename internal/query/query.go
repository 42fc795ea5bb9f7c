// Package query implements the mini query-language parser: it separates a
// free-form search string into semantic terms, exact phrases, title-scoped
// phrases, and an author filter.
//
// The parser is a small hand-rolled scanner rather than a regexp pipeline,
// following the teacher's preference (internal/rag/retrieve/query.go's
// normalizeQuery) for direct rune-by-rune processing over regex evaluation
// of user input.
package query

import (
	"errors"
	"strings"
	"unicode"
)

// MaxQueryLength is the maximum accepted length, in runes, of a query
// string. Longer queries are rejected with ErrQueryTooLong.
const MaxQueryLength = 1000

// MaxPhraseLength is the maximum accepted length of a single phrase body.
const MaxPhraseLength = 500

// ErrQueryTooLong is returned when the input exceeds MaxQueryLength runes.
var ErrQueryTooLong = errors.New("query: too long")

// fieldWhitelist are the only field scopes recognized; anything else is
// treated as a literal word to avoid silent filter failures or injection.
var fieldWhitelist = map[string]bool{
	"title":  true,
	"author": true,
}

// ParsedQuery is the result of parsing a query string.
type ParsedQuery struct {
	SemanticTerms []string
	ExactPhrases  []string
	TitlePhrases  []string
	AuthorFilter  string
	HasAuthor     bool
}

// Parse parses a single UTF-8 query string into a ParsedQuery. It is pure,
// total (for inputs within MaxQueryLength), and allocation-bounded: no
// regex evaluation is performed over the user-supplied text.
func Parse(raw string) (ParsedQuery, error) {
	// Null bytes are stripped before length validation, per spec.
	clean := strings.ReplaceAll(raw, "\x00", "")
	if len([]rune(clean)) > MaxQueryLength {
		return ParsedQuery{}, ErrQueryTooLong
	}

	var pq ParsedQuery
	runes := []rune(clean)
	i := 0
	n := len(runes)

	for i < n {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		// Try to recognize "<field>:"<phrase>"" where field is whitelisted.
		if field, ok := matchFieldPrefix(runes, i); ok {
			phraseStart := i + len(field) + 1 // skip "field:"
			if phraseStart < n && runes[phraseStart] == '"' {
				body, next, closed := scanPhrase(runes, phraseStart+1)
				if closed {
					addPhrase(&pq, field, trimPhrase(body))
					i = next
					continue
				}
				// Unterminated: the opening quote and everything after
				// becomes words; fall through to word scanning from i.
			}
		}

		if runes[i] == '"' {
			body, next, closed := scanPhrase(runes, i+1)
			if closed {
				if p := trimPhrase(body); p != "" {
					pq.ExactPhrases = append(pq.ExactPhrases, p)
				}
				i = next
				continue
			}
			// Unterminated quote: treat the quote character itself, and
			// everything following, as ordinary words.
			word, next := scanWord(runes, i)
			if word != "" {
				pq.SemanticTerms = append(pq.SemanticTerms, word)
			}
			i = next
			continue
		}

		word, next := scanWord(runes, i)
		if word != "" {
			pq.SemanticTerms = append(pq.SemanticTerms, word)
		}
		i = next
	}

	return pq, nil
}

// matchFieldPrefix reports whether runes[i:] begins with one of the
// whitelisted field names immediately followed by ':'. It returns the field
// name (lowercased) actually matched.
func matchFieldPrefix(runes []rune, i int) (string, bool) {
	for field := range fieldWhitelist {
		fl := len(field)
		if i+fl >= len(runes) {
			continue
		}
		if runes[i+fl] != ':' {
			continue
		}
		candidate := string(runes[i : i+fl])
		if strings.EqualFold(candidate, field) {
			return field, true
		}
	}
	return "", false
}

// scanPhrase scans the phrase body starting just after the opening quote.
// It returns the raw body, the index just past the closing quote (or start
// unchanged, if unterminated), and whether a closing quote was found.
func scanPhrase(runes []rune, start int) (string, int, bool) {
	n := len(runes)
	i := start
	for i < n && runes[i] != '"' {
		i++
		if i-start > MaxPhraseLength {
			// Cap runaway phrase bodies; keep scanning for the close quote
			// but the returned body is truncated at the cap.
		}
	}
	if i >= n {
		return string(runes[start:minInt(n, start+MaxPhraseLength)]), start, false
	}
	body := runes[start:i]
	if len(body) > MaxPhraseLength {
		body = body[:MaxPhraseLength]
	}
	return string(body), i + 1, true
}

// scanWord scans a single non-whitespace, non-quote word token starting at i.
func scanWord(runes []rune, i int) (string, int) {
	start := i
	n := len(runes)
	for i < n && !unicode.IsSpace(runes[i]) && runes[i] != '"' {
		i++
	}
	if i == start {
		// runes[i] was itself '"' with nothing consumed (Parse does this for
		// an unterminated quote): consume exactly one rune, so the quote
		// becomes a word of its own and progress is guaranteed.
		i++
	}
	return string(runes[start:i]), i
}

func addPhrase(pq *ParsedQuery, field, body string) {
	if body == "" {
		return
	}
	switch field {
	case "title":
		pq.TitlePhrases = append(pq.TitlePhrases, body)
	case "author":
		pq.AuthorFilter = body
		pq.HasAuthor = true
	}
}

func trimPhrase(s string) string {
	return strings.TrimSpace(s)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Render reconstructs a canonical query string for pq, satisfying the
// round-trip law Parse(Render(pq)) == pq for any pq whose phrase bodies do
// not contain a '"'. Order: author filter, title phrases, exact phrases,
// semantic terms.
func Render(pq ParsedQuery) string {
	var parts []string
	if pq.HasAuthor {
		parts = append(parts, `author:"`+pq.AuthorFilter+`"`)
	}
	for _, p := range pq.TitlePhrases {
		parts = append(parts, `title:"`+p+`"`)
	}
	for _, p := range pq.ExactPhrases {
		parts = append(parts, `"`+p+`"`)
	}
	parts = append(parts, pq.SemanticTerms...)
	return strings.Join(parts, " ")
}
