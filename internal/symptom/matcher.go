// Package symptom proposes drugs for free-text symptom descriptions by
// TF-IDF similarity between each symptom phrase and every record's medical
// condition.
package symptom

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// DefaultTopK is the number of candidates returned per symptom phrase
const DefaultTopK = 3

// PhraseSeparator splits a query into independent symptom phrases
const PhraseSeparator = " and "

// sparseVec maps vocabulary index to weight
type sparseVec map[int]float64

type entry struct {
	drug      string
	condition string
}

// Matcher holds the condition vector space. It is immutable after
// construction and safe for concurrent use.
type Matcher struct {
	entries []entry
	vocab   map[string]int
	idf     []float64
	vectors []sparseVec
}

// NewMatcher fits the vector space over the conditions of every record
// that has both a drug name and a medical condition, in row order
func NewMatcher(records []types.DrugRecord) *Matcher {
	m := &Matcher{vocab: make(map[string]int)}

	docs := make([][]string, 0, len(records))
	for _, rec := range records {
		if !rec.HasCondition() {
			continue
		}
		m.entries = append(m.entries, entry{drug: rec.DrugName, condition: rec.MedicalCondition})
		docs = append(docs, tokenize(strings.ToLower(rec.MedicalCondition)))
	}

	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	// Sorted vocabulary keeps indices stable across runs
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	m.idf = make([]float64, len(terms))
	for i, term := range terms {
		m.vocab[term] = i
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	m.vectors = make([]sparseVec, len(docs))
	for i, tokens := range docs {
		m.vectors[i] = m.vectorize(tokens)
	}
	return m
}

// Len returns the number of records in the vector space
func (m *Matcher) Len() int {
	return len(m.entries)
}

// Match splits query into phrases and returns the topK best matching
// records for each phrase, phrase by phrase. Candidates are not merged
// across phrases. Equal scores keep row order. topK <= 0 means DefaultTopK.
func (m *Matcher) Match(query string, topK int) []types.ScoredCandidate {
	if topK <= 0 {
		topK = DefaultTopK
	}

	out := make([]types.ScoredCandidate, 0)
	for _, phrase := range SplitPhrases(query) {
		out = append(out, m.matchPhrase(phrase, topK)...)
	}
	return out
}

// SplitPhrases splits on PhraseSeparator, trims and lowercases each phrase
// and drops empty ones
func SplitPhrases(query string) []string {
	parts := strings.Split(query, PhraseSeparator)
	phrases := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

func (m *Matcher) matchPhrase(phrase string, topK int) []types.ScoredCandidate {
	q := m.vectorize(tokenize(phrase))

	scores := make([]float64, len(m.vectors))
	for i, v := range m.vectors {
		scores[i] = dot(q, v)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if topK > len(order) {
		topK = len(order)
	}
	out := make([]types.ScoredCandidate, 0, topK)
	for _, idx := range order[:topK] {
		out = append(out, types.ScoredCandidate{
			DrugName:         m.entries[idx].drug,
			MedicalCondition: m.entries[idx].condition,
			Symptom:          phrase,
			Score:            scores[idx],
		})
	}
	return out
}

// vectorize builds the L2-normalized tf-idf vector of tokens. Tokens
// outside the vocabulary are ignored.
func (m *Matcher) vectorize(tokens []string) sparseVec {
	v := make(sparseVec)
	for _, tok := range tokens {
		if i, ok := m.vocab[tok]; ok {
			v[i]++
		}
	}

	var norm float64
	for i, tf := range v {
		w := tf * m.idf[i]
		v[i] = w
		norm += w * w
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func dot(a, b sparseVec) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var s float64
	for i, w := range a {
		s += w * b[i]
	}
	return s
}

// tokenize returns runs of word characters at least two runes long
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
