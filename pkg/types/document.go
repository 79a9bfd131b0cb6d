package types

import (
	"crypto/sha256"
	"errors"
)

// DocumentVariant identifies which projection produced a document
type DocumentVariant string

const (
	// VariantFull carries every DrugRecord field and feeds the dense index
	VariantFull DocumentVariant = "full"
	// VariantCompact carries name, generic name, condition and side effects and feeds the sparse index
	VariantCompact DocumentVariant = "compact"
)

// DocumentMetadata is the filterable metadata attached to a document
type DocumentMetadata struct {
	DrugName string
}

// RetrievableDocument is the text unit stored in and returned by the indices
type RetrievableDocument struct {
	Content  string
	Metadata DocumentMetadata
	Variant  DocumentVariant
}

// ContentHash returns the SHA-256 hash of the document content
func (d *RetrievableDocument) ContentHash() [32]byte {
	return sha256.Sum256([]byte(d.Content))
}

// Validate checks if the document can be indexed
func (d *RetrievableDocument) Validate() error {
	if d.Content == "" {
		return ErrEmptyContent
	}

	switch d.Variant {
	case VariantFull, VariantCompact:
	default:
		return errors.New("invalid document variant")
	}

	return nil
}
