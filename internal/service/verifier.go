package service

import (
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// Verifier decides whether generated text is grounded in its sources.
type Verifier interface {
	Verify(response string, sources []domain.KnowledgeSource) bool
}

// TermOverlapVerifier accepts a response when enough distinctive source
// terms reappear in it. It is a lexical heuristic: paraphrases can fail it
// and a response that copies terms while contradicting them can pass.
type TermOverlapVerifier struct {
	// MinRatio is the share of sampled terms that must appear.
	MinRatio float64
	// MaxTerms caps how many distinct terms are sampled, in source order.
	MaxTerms int
	// MinTermLen excludes terms of this many runes or fewer.
	MinTermLen int
}

func NewTermOverlapVerifier(minRatio float64) *TermOverlapVerifier {
	return &TermOverlapVerifier{MinRatio: minRatio, MaxTerms: 20, MinTermLen: 3}
}

// Verify rejects when no terms can be sampled at all.
func (v *TermOverlapVerifier) Verify(response string, sources []domain.KnowledgeSource) bool {
	terms := v.sourceTerms(sources)
	if len(terms) == 0 {
		return false
	}

	lower := strings.ToLower(response)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched)/float64(len(terms)) >= v.MinRatio
}

func (v *TermOverlapVerifier) sourceTerms(sources []domain.KnowledgeSource) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, s := range sources {
		for _, w := range strings.Fields(strings.ToLower(s.Content)) {
			if utf8.RuneCountInString(w) <= v.MinTermLen {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			terms = append(terms, w)
			if len(terms) == v.MaxTerms {
				return terms
			}
		}
	}
	return terms
}
