package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/medcontext-mcp/internal/corpus"
	"github.com/dshills/medcontext-mcp/pkg/types"
)

func names(drugs ...string) *corpus.NameSet {
	records := make([]types.DrugRecord, 0, len(drugs))
	for i, d := range drugs {
		records = append(records, types.DrugRecord{Row: i, DrugName: d, MedicalCondition: "anxiety"})
	}
	return corpus.NewNameSet(records)
}

func TestClassify(t *testing.T) {
	set := names("compoz", "sumatriptan", "aspirin")

	tests := []struct {
		name  string
		query string
		want  Route
	}{
		{"empty", "", Route{Kind: KindEmpty}},
		{"whitespace", "   ", Route{Kind: KindEmpty}},
		{"drug question", "what is compoz used for?", Route{Kind: KindDrugSpecific, Drug: "compoz"}},
		{"drug beats explanation", "what is aspirin", Route{Kind: KindDrugSpecific, Drug: "aspirin"}},
		{"drug beats fuzzy", "sumatriptan", Route{Kind: KindDrugSpecific, Drug: "sumatriptan"}},
		{"explanation", "what is photophobia?", Route{Kind: KindExplanation, Term: "photophobia"}},
		{"explain", "explain tachycardia", Route{Kind: KindExplanation, Term: "tachycardia"}},
		{"meaning of", "meaning of contraindication", Route{Kind: KindExplanation, Term: "contraindication"}},
		{"long explanation is not one", "what is the best thing to take when my head hurts a lot", Route{Kind: KindSymptom}},
		{"short is fuzzy", "headache remedies", Route{Kind: KindFuzzy}},
		{"no question words is fuzzy", "i have a terrible headache and nausea today", Route{Kind: KindFuzzy}},
		{"symptom", "which medicine can help with headache and nausea", Route{Kind: KindSymptom}},
		{"question mark counts", "any good medicine for a sore throat?", Route{Kind: KindSymptom}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.query, set))
		})
	}
}

func TestClassify_SingleRecordScenario(t *testing.T) {
	set := names("compoz")
	route := Classify("what is compoz used for?", set)
	assert.Equal(t, KindDrugSpecific, route.Kind)
	assert.Equal(t, "compoz", route.Drug)
}

func TestClassify_DrugAlwaysWins(t *testing.T) {
	set := names("compoz")
	queries := []string{
		"compoz",
		"what is compoz",
		"explain compoz",
		"meaning of compoz",
		"how can compoz help with sleep and anxiety at night?",
	}
	for _, q := range queries {
		assert.Equal(t, KindDrugSpecific, Classify(q, set).Kind, q)
	}
}

func TestExplanationTerm(t *testing.T) {
	assert.Equal(t, "photophobia", ExplanationTerm("What is photophobia?"))
	assert.Equal(t, "", ExplanationTerm("explain ?"))
}
