package match

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity scores two normalized subjects in [0,1]. Implementations must
// be deterministic.
type Similarity interface {
	Score(a, b string) float64
}

// SimilarityFunc adapts a function to Similarity
type SimilarityFunc func(a, b string) float64

// Score implements Similarity
func (f SimilarityFunc) Score(a, b string) float64 { return f(a, b) }

// Strategy names accepted by NewSimilarity
const (
	StrategyTokenSet    = "token-set"
	StrategyLevenshtein = "levenshtein"
)

// DefaultThreshold is the acceptance threshold for fuzzy subject matches
const DefaultThreshold = 0.6

// NewSimilarity returns the named strategy
func NewSimilarity(name string) (Similarity, error) {
	switch name {
	case "", StrategyTokenSet:
		return TokenSet{}, nil
	case StrategyLevenshtein:
		return Levenshtein{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity strategy %q", name)
	}
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true,
	"at": true, "to": true, "for": true, "of": true, "is": true,
	"it": true, "and": true, "or": true, "with": true, "from": true,
	"by": true, "this": true, "that": true, "as": true, "be": true,
}

// Tokens splits a subject into lowercased content words. Punctuation at
// word edges is trimmed; stopwords and single characters are dropped.
func Tokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		trimmed := strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		if utf8.RuneCountInString(trimmed) < 2 || stopwords[trimmed] {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// TokenSet is the Jaccard ratio of the two token sets
type TokenSet struct{}

// Score implements Similarity
func (TokenSet) Score(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// sharesTokens marks strategies that score 0 unless both sides share a token,
// which lets the matcher scan only commits found through the token index.
func (TokenSet) sharesTokens() {}

type tokenGated interface{ sharesTokens() }

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range Tokens(s) {
		set[t] = true
	}
	return set
}

// Levenshtein is 1 - editDistance/maxLen over runes
type Levenshtein struct{}

// Score implements Similarity
func (Levenshtein) Score(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // no wall-clock cutoff, always the full diff
	diffs := dmp.DiffMain(a, b, false)
	dist := dmp.DiffLevenshtein(diffs)
	r := 1 - float64(dist)/float64(longest)
	if r < 0 {
		return 0
	}
	return r
}
