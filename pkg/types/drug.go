package types

import "errors"

// NotAvailable is the sentinel stored for a missing generic name
const NotAvailable = "N/A"

// DrugRecord is one normalized row of the drug corpus
type DrugRecord struct {
	// Row is the zero-based position of the record in the source table
	Row int

	DrugName         string // lowercase, trimmed
	GenericName      string
	MedicalCondition string
	SideEffects      string
	DrugClass        string
	BrandNames       string
	Activity         string
	Rating           string
	ReviewCount      string
	RxOTC            string
	RelatedDrugs     string
}

// Validate checks the fields every downstream component depends on
func (r *DrugRecord) Validate() error {
	if r.DrugName == "" {
		return errors.New("drug name cannot be empty")
	}
	if r.Row < 0 {
		return errors.New("row must be non-negative")
	}
	return nil
}

// HasCondition reports whether the record can take part in symptom matching
func (r *DrugRecord) HasCondition() bool {
	return r.DrugName != "" && r.MedicalCondition != ""
}
