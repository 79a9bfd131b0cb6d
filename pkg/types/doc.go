// Package types provides shared type definitions for the medcontext MCP server.
//
// # Core Types
//
// DrugRecord is one normalized row of the drug corpus. Drug names are always
// lowercase and trimmed, and several records may share a name:
//
//	rec := types.DrugRecord{
//	    DrugName:         "compoz",
//	    GenericName:      "diphenhydramine",
//	    MedicalCondition: "insomnia",
//	}
//
// RetrievableDocument is the text projection of a record that the dense and
// sparse indices store. The Variant records which projection built it:
//
//	doc := types.RetrievableDocument{
//	    Content:  "drug_name: compoz\ngeneric_name: diphenhydramine",
//	    Metadata: types.DocumentMetadata{DrugName: "compoz"},
//	    Variant:  types.VariantCompact,
//	}
//
// ScoredCandidate is produced by symptom matching, one per selected record
// per symptom phrase. ConversationContext carries the last mentioned drug of
// a session for pronoun resolution.
//
// # Errors
//
// Three error kinds cross package boundaries and are matched with errors.As:
//
//	var le *types.DataLoadError        // corpus missing or malformed, fatal
//	var be *types.IndexBuildError      // index construction failed, fatal
//	var ue *types.UpstreamServiceError // embedding or LLM call failed, recoverable
//
// An empty retrieval result is not an error.
package types
