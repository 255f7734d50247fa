package oracle

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

var stopWords = map[string]bool{
	"a": true, "about": true, "after": true, "all": true, "also": true, "an": true,
	"and": true, "any": true, "are": true, "as": true, "at": true, "be": true,
	"been": true, "but": true, "by": true, "can": true, "could": true, "did": true,
	"do": true, "does": true, "each": true, "for": true, "from": true, "had": true,
	"has": true, "have": true, "he": true, "her": true, "his": true, "how": true,
	"if": true, "in": true, "into": true, "is": true, "it": true, "its": true,
	"may": true, "more": true, "most": true, "no": true, "not": true, "of": true,
	"on": true, "one": true, "or": true, "other": true, "she": true, "so": true,
	"some": true, "such": true, "than": true, "that": true, "the": true,
	"their": true, "them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "to": true, "was": true, "were": true,
	"what": true, "when": true, "which": true, "while": true, "who": true,
	"will": true, "with": true, "would": true,
}

// Lexical scores texts by the cosine similarity of their term-frequency
// vectors over lower-cased word tokens, ignoring English stop words. It needs
// no external service.
type Lexical struct{}

// Similarity implements Oracle.
func (Lexical) Similarity(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ta, tb := termFrequencies(a), termFrequencies(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0, nil
	}

	vocab := make([]string, 0, len(ta)+len(tb))
	for t := range ta {
		vocab = append(vocab, t)
	}
	for t := range tb {
		if _, ok := ta[t]; !ok {
			vocab = append(vocab, t)
		}
	}
	sort.Strings(vocab)

	va := make([]float32, len(vocab))
	vb := make([]float32, len(vocab))
	for i, t := range vocab {
		va[i] = float32(ta[t])
		vb[i] = float32(tb[t])
	}
	return Cosine(va, vb)
}

func termFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if len([]rune(w)) < 2 || stopWords[w] {
			continue
		}
		tf[w]++
	}
	return tf
}
