// Package projector turns drug records into retrievable text documents.
//
// Two projections exist. Full writes all eleven record fields and feeds the
// dense index; Compact writes drug_name, generic_name, medical_condition and
// side_effects and feeds the sparse index. Each field is one "label: value"
// line in a fixed order, so the same record always produces byte-identical
// content. The hybrid retriever relies on that to de-duplicate by content.
//
//	doc := projector.Compact(rec)
//	// drug_name: compoz
//	// generic_name: diphenhydramine
//	// medical_condition: insomnia
//	// side_effects: drowsiness
package projector
