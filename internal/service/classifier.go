package service

import (
	"strings"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// ClassifierConfig holds the term lists that route queries. Matching is a
// case-insensitive substring test.
type ClassifierConfig struct {
	SimpleTerms    []string `yaml:"simple_terms"`
	SensitiveTerms []string `yaml:"sensitive_terms"`
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		SimpleTerms: []string{
			"godziny otwarcia",
			"kontakt",
			"adres",
			"telefon",
			"email",
			"dostawa",
			"zwrot",
			"reklamacja",
			"płatność",
		},
		SensitiveTerms: []string{
			"rabat",
			"promocja",
			"cena",
			"koszt",
			"zwrot pieniędzy",
			"rekompensata",
			"odszkodowanie",
		},
	}
}

// Classifier assigns a QueryType to a customer query. It is pure and safe
// for concurrent use.
type Classifier struct {
	simple    []string
	sensitive []string
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{
		simple:    lowerAll(cfg.SimpleTerms),
		sensitive: lowerAll(cfg.SensitiveTerms),
	}
}

// Classify checks sensitive terms first so a query touching money is never
// treated as simple.
func (c *Classifier) Classify(query string) domain.QueryType {
	q := strings.ToLower(query)
	if containsAny(q, c.sensitive) {
		return domain.QueryTypeSensitive
	}
	if containsAny(q, c.simple) {
		return domain.QueryTypeSimple
	}
	return domain.QueryTypeComplex
}

func lowerAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
