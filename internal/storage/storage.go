package storage

import (
	"context"
	"time"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed drug documents
type Storage interface {
	// Document operations
	ReplaceDocuments(ctx context.Context, variant types.DocumentVariant, docs []*Document) error
	GetDocument(ctx context.Context, documentID int64) (*Document, error)
	ListDocuments(ctx context.Context, variant types.DocumentVariant) ([]*Document, error)
	CountDocuments(ctx context.Context, variant types.DocumentVariant) (int, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, documentID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)

	// Persisted index state
	GetIndexState(ctx context.Context, name string) (*IndexState, error)
	SetIndexState(ctx context.Context, state *IndexState) error
	DeleteIndexState(ctx context.Context, name string) error

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Document is a stored projection of a drug record
type Document struct {
	ID          int64
	Variant     types.DocumentVariant
	DrugName    string
	Content     string
	ContentHash [32]byte
	Position    int // insertion order within the variant
	CreatedAt   time.Time
}

// Embedding represents a vector embedding for a document
type Embedding struct {
	ID         int64
	DocumentID int64
	Vector     []byte // Serialized float32 array
	Dimension  int
	Provider   string
	Model      string
	CreatedAt  time.Time
}

// IndexState marks an index as built. Its presence is what makes builds idempotent.
type IndexState struct {
	Name       string
	Documents  int
	Model      string // embedding model for the dense index, empty for sparse
	CorpusHash string // hex sha256 over the indexed document contents
	BuiltAt    time.Time
}

// SearchFilters contains filters for narrowing vector search results
type SearchFilters struct {
	DrugName string // exact match on document metadata
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	DocumentID      int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	DocumentID int64
	BM25Score  float64
}

// Status contains statistics about the stored indices
type Status struct {
	FullDocuments    int
	CompactDocuments int
	Embeddings       int
	States           []IndexState
	Health           HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexBuilt       bool
}

// NewDocument converts a projected document into its storage form
func NewDocument(doc types.RetrievableDocument, position int) *Document {
	return &Document{
		Variant:     doc.Variant,
		DrugName:    doc.Metadata.DrugName,
		Content:     doc.Content,
		ContentHash: doc.ContentHash(),
		Position:    position,
	}
}

// ToTypesDocument converts a stored document back to the domain type
func (d *Document) ToTypesDocument() types.RetrievableDocument {
	return types.RetrievableDocument{
		Content:  d.Content,
		Metadata: types.DocumentMetadata{DrugName: d.DrugName},
		Variant:  d.Variant,
	}
}
