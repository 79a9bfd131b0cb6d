package projector

import (
	"strings"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// field is one labelled line of a projected document
type field struct {
	label string
	value func(r *types.DrugRecord) string
}

// fullFields is the fixed field order of the full projection
var fullFields = []field{
	{"drug_name", func(r *types.DrugRecord) string { return r.DrugName }},
	{"generic_name", func(r *types.DrugRecord) string { return r.GenericName }},
	{"medical_condition", func(r *types.DrugRecord) string { return r.MedicalCondition }},
	{"drug_class", func(r *types.DrugRecord) string { return r.DrugClass }},
	{"side_effects", func(r *types.DrugRecord) string { return r.SideEffects }},
	{"brand_names", func(r *types.DrugRecord) string { return r.BrandNames }},
	{"activity", func(r *types.DrugRecord) string { return r.Activity }},
	{"rating", func(r *types.DrugRecord) string { return r.Rating }},
	{"no_of_reviews", func(r *types.DrugRecord) string { return r.ReviewCount }},
	{"rx_otc", func(r *types.DrugRecord) string { return r.RxOTC }},
	{"related_drugs", func(r *types.DrugRecord) string { return r.RelatedDrugs }},
}

// compactFields is the fixed field order of the compact projection
var compactFields = []field{
	fullFields[0], // drug_name
	fullFields[1], // generic_name
	fullFields[2], // medical_condition
	fullFields[4], // side_effects
}

// Full projects every record field, for the dense index
func Full(rec types.DrugRecord) types.RetrievableDocument {
	return project(&rec, fullFields, types.VariantFull)
}

// Compact projects drug name, generic name, condition and side effects, for the sparse index
func Compact(rec types.DrugRecord) types.RetrievableDocument {
	return project(&rec, compactFields, types.VariantCompact)
}

// Project converts every record with the chosen variant, preserving record order
func Project(records []types.DrugRecord, variant types.DocumentVariant) []types.RetrievableDocument {
	fn := Full
	if variant == types.VariantCompact {
		fn = Compact
	}

	docs := make([]types.RetrievableDocument, len(records))
	for i := range records {
		docs[i] = fn(records[i])
	}
	return docs
}

// Labels returns the field labels of a variant in projection order
func Labels(variant types.DocumentVariant) []string {
	fields := fullFields
	if variant == types.VariantCompact {
		fields = compactFields
	}

	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.label
	}
	return labels
}

func project(rec *types.DrugRecord, fields []field, variant types.DocumentVariant) types.RetrievableDocument {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.label)
		b.WriteString(": ")
		// Newlines inside a value would break the one-field-per-line layout
		b.WriteString(flatten(f.value(rec)))
	}

	return types.RetrievableDocument{
		Content:  b.String(),
		Metadata: types.DocumentMetadata{DrugName: rec.DrugName},
		Variant:  variant,
	}
}

func flatten(v string) string {
	if !strings.ContainsAny(v, "\r\n") {
		return strings.TrimSpace(v)
	}
	return strings.Join(strings.Fields(v), " ")
}
