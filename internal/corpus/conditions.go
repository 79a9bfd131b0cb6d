package corpus

import (
	"sort"
	"strings"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Conditions returns the distinct non-empty medical conditions in lexicographic order
func Conditions(records []types.DrugRecord) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range records {
		c := records[i].MedicalCondition
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DrugsForCondition returns the distinct drug names treating condition, in row order.
// The comparison ignores case and surrounding whitespace.
func DrugsForCondition(records []types.DrugRecord, condition string) []string {
	want := strings.ToLower(strings.TrimSpace(condition))
	if want == "" {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range records {
		if strings.ToLower(records[i].MedicalCondition) != want || records[i].DrugName == "" {
			continue
		}
		if _, ok := seen[records[i].DrugName]; ok {
			continue
		}
		seen[records[i].DrugName] = struct{}{}
		out = append(out, records[i].DrugName)
	}
	return out
}
