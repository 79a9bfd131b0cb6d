package corpus

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// NameSet is the immutable set of known drug names, built once from the corpus
type NameSet struct {
	names  map[string]struct{}
	sorted []string // longest first, then lexicographic
}

// NewNameSet builds the drug-name set from loaded records
func NewNameSet(records []types.DrugRecord) *NameSet {
	names := make(map[string]struct{}, len(records))
	for i := range records {
		if records[i].DrugName != "" {
			names[records[i].DrugName] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	return &NameSet{names: names, sorted: sorted}
}

// Len returns the number of distinct drug names
func (s *NameSet) Len() int {
	return len(s.names)
}

// Contains reports whether name (after normalization) is a known drug
func (s *NameSet) Contains(name string) bool {
	_, ok := s.names[NormalizeName(name)]
	return ok
}

// Names returns the known drug names in lexicographic order
func (s *NameSet) Names() []string {
	out := make([]string, len(s.sorted))
	copy(out, s.sorted)
	sort.Strings(out)
	return out
}

// Detect returns the known drug name mentioned in query, or "" when none is.
// A name matches when it occurs on token boundaries; the longest match wins.
func (s *NameSet) Detect(query string) string {
	query = NormalizeQuery(query)
	if query == "" {
		return ""
	}

	for _, name := range s.sorted {
		if containsToken(query, name) {
			return name
		}
	}
	return ""
}

// containsToken reports whether needle occurs in haystack without being glued to
// a letter or digit on either side
func containsToken(haystack, needle string) bool {
	if needle == "" {
		return false
	}

	from := 0
	for {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(needle)

		if boundaryBefore(haystack, start) && boundaryAfter(haystack, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		from = start + size
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
