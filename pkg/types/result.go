package types

// ScoredCandidate is a drug proposed for one symptom phrase
type ScoredCandidate struct {
	DrugName         string
	MedicalCondition string
	Symptom          string // the query fragment the candidate was scored against
	Score            float64
}

// SearchResult is a document returned by one of the indices with its rank
type SearchResult struct {
	Document RetrievableDocument
	Rank     int     // Position in result set (1-based)
	Score    float64 // Index specific relevance, higher is better
	Source   string  // "dense" or "sparse"
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Document.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
