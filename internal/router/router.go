// Package router classifies user queries into the handling path that
// answers them.
package router

import (
	"strings"
)

// Kind is the handling path chosen for a query
type Kind string

const (
	KindEmpty        Kind = "empty"
	KindDrugSpecific Kind = "drug_specific"
	KindExplanation  Kind = "explanation"
	KindFuzzy        Kind = "fuzzy"
	KindSymptom      Kind = "symptom"
)

// MaxExplanationWords is the longest query still treated as a definition request
const MaxExplanationWords = 8

// MinFocusedWords is the shortest query not treated as fuzzy by length alone
const MinFocusedWords = 5

var (
	explanationTriggers = []string{"what is", "explain", "meaning of"}
	questionMarkers     = []string{"what", "how", "can", "why", "?"}
)

// DrugDetector finds a known drug name in a query, returning "" when none is present
type DrugDetector interface {
	Detect(query string) string
}

// Route is the outcome of classification
type Route struct {
	Kind Kind
	Drug string // set for KindDrugSpecific
	Term string // set for KindExplanation
}

// Classify assigns query to exactly one route. Guards are evaluated in
// order, so a detected drug always wins over the explanation and fuzzy
// heuristics. query is expected to be normalized (lowercase, trimmed).
func Classify(query string, drugs DrugDetector) Route {
	query = strings.TrimSpace(query)
	if query == "" {
		return Route{Kind: KindEmpty}
	}

	if drug := drugs.Detect(query); drug != "" {
		return Route{Kind: KindDrugSpecific, Drug: drug}
	}

	words := len(strings.Fields(query))

	if words <= MaxExplanationWords && containsAny(query, explanationTriggers) {
		return Route{Kind: KindExplanation, Term: ExplanationTerm(query)}
	}

	if words < MinFocusedWords || !containsAny(query, questionMarkers) {
		return Route{Kind: KindFuzzy}
	}

	return Route{Kind: KindSymptom}
}

// ExplanationTerm strips the explanation triggers from query, leaving the
// term to define
func ExplanationTerm(query string) string {
	term := strings.ToLower(query)
	for _, trigger := range explanationTriggers {
		term = strings.ReplaceAll(term, trigger, "")
	}
	return strings.Trim(term, " ?")
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
