package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned when BeginTx is called on a transaction
	ErrNestedTx = errors.New("nested transactions are not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer; also keeps :memory: on one connection
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// Document operations

// ReplaceDocuments atomically swaps every document of a variant for docs.
// Positions are taken from the slice order.
func (s *SQLiteStorage) ReplaceDocuments(ctx context.Context, variant types.DocumentVariant, docs []*Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := replaceDocuments(ctx, tx, variant, docs); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

func replaceDocuments(ctx context.Context, q querier, variant types.DocumentVariant, docs []*Document) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM documents WHERE variant = ?", string(variant)); err != nil {
		return fmt.Errorf("failed to clear %s documents: %w", variant, err)
	}

	query := `
		INSERT INTO documents (variant, drug_name, content, content_hash, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for i, doc := range docs {
		doc.Variant = variant
		doc.Position = i
		result, err := q.ExecContext(ctx, query,
			string(variant), doc.DrugName, doc.Content, doc.ContentHash[:], doc.Position, now)
		if err != nil {
			return fmt.Errorf("failed to insert document %d: %w", i, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		doc.ID = id
		doc.CreatedAt = now
	}

	return nil
}

func getDocument(ctx context.Context, q querier, documentID int64) (*Document, error) {
	query := `
		SELECT id, variant, drug_name, content, content_hash, position, created_at
		FROM documents
		WHERE id = ?
	`
	doc, err := scanDocument(q.QueryRowContext(ctx, query, documentID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return doc, err
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	return getDocument(ctx, s.db, documentID)
}

func listDocuments(ctx context.Context, q querier, variant types.DocumentVariant) ([]*Document, error) {
	query := `
		SELECT id, variant, drug_name, content, content_hash, position, created_at
		FROM documents
		WHERE variant = ?
		ORDER BY position
	`
	rows, err := q.QueryContext(ctx, query, string(variant))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context, variant types.DocumentVariant) ([]*Document, error) {
	return listDocuments(ctx, s.db, variant)
}

func countDocuments(ctx context.Context, q querier, variant types.DocumentVariant) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE variant = ?", string(variant)).Scan(&n)
	return n, err
}

func (s *SQLiteStorage) CountDocuments(ctx context.Context, variant types.DocumentVariant) (int, error) {
	return countDocuments(ctx, s.db, variant)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var variant string
	var hash []byte
	if err := row.Scan(&doc.ID, &variant, &doc.DrugName, &doc.Content, &hash, &doc.Position, &doc.CreatedAt); err != nil {
		return nil, err
	}
	doc.Variant = types.DocumentVariant(variant)
	copy(doc.ContentHash[:], hash)
	return &doc, nil
}

// Embedding operations

func upsertEmbedding(ctx context.Context, q querier, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (document_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now()
	result, err := q.ExecContext(ctx, query,
		embedding.DocumentID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil && id > 0 {
		embedding.ID = id
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbedding(ctx, s.db, embedding)
}

func getEmbedding(ctx context.Context, q querier, documentID int64) (*Embedding, error) {
	query := `
		SELECT id, document_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE document_id = ?
	`
	var emb Embedding
	err := q.QueryRowContext(ctx, query, documentID).Scan(
		&emb.ID, &emb.DocumentID, &emb.Vector, &emb.Dimension,
		&emb.Provider, &emb.Model, &emb.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, documentID int64) (*Embedding, error) {
	return getEmbedding(ctx, s.db, documentID)
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.db, queryVector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.db, query, limit)
}

// Index state operations

func getIndexState(ctx context.Context, q querier, name string) (*IndexState, error) {
	var state IndexState
	var model, corpusHash sql.NullString
	err := q.QueryRowContext(ctx,
		"SELECT name, documents, model, corpus_hash, built_at FROM index_state WHERE name = ?", name,
	).Scan(&state.Name, &state.Documents, &model, &corpusHash, &state.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	state.Model = model.String
	state.CorpusHash = corpusHash.String
	return &state, nil
}

func (s *SQLiteStorage) GetIndexState(ctx context.Context, name string) (*IndexState, error) {
	return getIndexState(ctx, s.db, name)
}

func setIndexState(ctx context.Context, q querier, state *IndexState) error {
	if state.BuiltAt.IsZero() {
		state.BuiltAt = time.Now()
	}
	query := `
		INSERT INTO index_state (name, documents, model, corpus_hash, built_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			documents = excluded.documents,
			model = excluded.model,
			corpus_hash = excluded.corpus_hash,
			built_at = excluded.built_at
	`
	if _, err := q.ExecContext(ctx, query, state.Name, state.Documents, state.Model, state.CorpusHash, state.BuiltAt); err != nil {
		return fmt.Errorf("failed to set index state %s: %w", state.Name, err)
	}
	return nil
}

func (s *SQLiteStorage) SetIndexState(ctx context.Context, state *IndexState) error {
	return setIndexState(ctx, s.db, state)
}

func deleteIndexState(ctx context.Context, q querier, name string) error {
	_, err := q.ExecContext(ctx, "DELETE FROM index_state WHERE name = ?", name)
	return err
}

func (s *SQLiteStorage) DeleteIndexState(ctx context.Context, name string) error {
	return deleteIndexState(ctx, s.db, name)
}

// Status operations

func getStatus(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	var err error
	if status.FullDocuments, err = countDocuments(ctx, q, types.VariantFull); err != nil {
		return nil, fmt.Errorf("failed to count full documents: %w", err)
	}
	if status.CompactDocuments, err = countDocuments(ctx, q, types.VariantCompact); err != nil {
		return nil, fmt.Errorf("failed to count compact documents: %w", err)
	}
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM embeddings").Scan(&status.Embeddings); err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}

	rows, err := q.QueryContext(ctx, "SELECT name, documents, model, corpus_hash, built_at FROM index_state ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list index state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var st IndexState
		var model, corpusHash sql.NullString
		if err := rows.Scan(&st.Name, &st.Documents, &model, &corpusHash, &st.BuiltAt); err != nil {
			return nil, err
		}
		st.Model = model.String
		st.CorpusHash = corpusHash.String
		status.States = append(status.States, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.Embeddings > 0,
		FTSIndexBuilt:       status.CompactDocuments > 0,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, s.db)
}

// Transaction operations

func (t *sqliteTx) ReplaceDocuments(ctx context.Context, variant types.DocumentVariant, docs []*Document) error {
	return replaceDocuments(ctx, t.tx, variant, docs)
}

func (t *sqliteTx) GetDocument(ctx context.Context, documentID int64) (*Document, error) {
	return getDocument(ctx, t.tx, documentID)
}

func (t *sqliteTx) ListDocuments(ctx context.Context, variant types.DocumentVariant) ([]*Document, error) {
	return listDocuments(ctx, t.tx, variant)
}

func (t *sqliteTx) CountDocuments(ctx context.Context, variant types.DocumentVariant) (int, error) {
	return countDocuments(ctx, t.tx, variant)
}

func (t *sqliteTx) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	return upsertEmbedding(ctx, t.tx, embedding)
}

func (t *sqliteTx) GetEmbedding(ctx context.Context, documentID int64) (*Embedding, error) {
	return getEmbedding(ctx, t.tx, documentID)
}

func (t *sqliteTx) SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, t.tx, vector, limit, filters)
}

func (t *sqliteTx) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, t.tx, query, limit)
}

func (t *sqliteTx) GetIndexState(ctx context.Context, name string) (*IndexState, error) {
	return getIndexState(ctx, t.tx, name)
}

func (t *sqliteTx) SetIndexState(ctx context.Context, state *IndexState) error {
	return setIndexState(ctx, t.tx, state)
}

func (t *sqliteTx) DeleteIndexState(ctx context.Context, name string) error {
	return deleteIndexState(ctx, t.tx, name)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return getStatus(ctx, t.tx)
}

func (t *sqliteTx) Close() error {
	return t.Rollback()
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}
