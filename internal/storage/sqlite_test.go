package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func testDocs(variant types.DocumentVariant, contents ...[2]string) []*Document {
	docs := make([]*Document, 0, len(contents))
	for i, c := range contents {
		docs = append(docs, NewDocument(types.RetrievableDocument{
			Content:  c[1],
			Metadata: types.DocumentMetadata{DrugName: c[0]},
			Variant:  variant,
		}, i))
	}
	return docs
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage)
	assert.NotNil(t, storage.db)
}

func TestClose(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.Close()
	assert.NoError(t, err)
}

func TestReplaceDocuments(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	docs := testDocs(types.VariantCompact,
		[2]string{"compoz", "drug_name: compoz\nmedical_condition: Insomnia"},
		[2]string{"sumatriptan", "drug_name: sumatriptan\nmedical_condition: Migraine"},
	)

	err := storage.ReplaceDocuments(ctx, types.VariantCompact, docs)
	require.NoError(t, err)
	for i, doc := range docs {
		assert.Greater(t, doc.ID, int64(0))
		assert.Equal(t, i, doc.Position)
	}

	listed, err := storage.ListDocuments(ctx, types.VariantCompact)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "compoz", listed[0].DrugName)
	assert.Equal(t, docs[0].ContentHash, listed[0].ContentHash)
	assert.Equal(t, types.VariantCompact, listed[0].Variant)

	// Replacing swaps the whole variant
	err = storage.ReplaceDocuments(ctx, types.VariantCompact, testDocs(types.VariantCompact,
		[2]string{"aspirin", "drug_name: aspirin"},
	))
	require.NoError(t, err)

	n, err := storage.CountDocuments(ctx, types.VariantCompact)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Other variant untouched
	n, err = storage.CountDocuments(ctx, types.VariantFull)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestGetDocument(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	docs := testDocs(types.VariantFull, [2]string{"compoz", "drug_name: compoz"})
	require.NoError(t, storage.ReplaceDocuments(ctx, types.VariantFull, docs))

	doc, err := storage.GetDocument(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "drug_name: compoz", doc.Content)
	assert.Equal(t, "compoz", doc.ToTypesDocument().Metadata.DrugName)
}

func TestGetDocument_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.GetDocument(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertEmbedding(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	docs := testDocs(types.VariantFull, [2]string{"compoz", "drug_name: compoz"})
	require.NoError(t, storage.ReplaceDocuments(ctx, types.VariantFull, docs))

	emb := &Embedding{
		DocumentID: docs[0].ID,
		Vector:     SerializeVector([]float32{1, 0, 0}),
		Dimension:  3,
		Provider:   "local",
		Model:      "hash-3",
	}
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))

	// Upsert again with a new model
	emb.Model = "hash-3b"
	require.NoError(t, storage.UpsertEmbedding(ctx, emb))

	got, err := storage.GetEmbedding(ctx, docs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-3b", got.Model)
	assert.Equal(t, []float32{1, 0, 0}, DeserializeVector(got.Vector))
}

func TestReplaceDocuments_CascadesEmbeddings(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	docs := testDocs(types.VariantFull, [2]string{"compoz", "drug_name: compoz"})
	require.NoError(t, storage.ReplaceDocuments(ctx, types.VariantFull, docs))
	require.NoError(t, storage.UpsertEmbedding(ctx, &Embedding{
		DocumentID: docs[0].ID,
		Vector:     SerializeVector([]float32{1, 0}),
		Dimension:  2,
		Provider:   "local",
		Model:      "m",
	}))

	require.NoError(t, storage.ReplaceDocuments(ctx, types.VariantFull, nil))

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Embeddings)
}

func TestIndexState(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	_, err := storage.GetIndexState(ctx, "dense")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.SetIndexState(ctx, &IndexState{Name: "dense", Documents: 3, Model: "nomic"}))
	require.NoError(t, storage.SetIndexState(ctx, &IndexState{Name: "dense", Documents: 4, Model: "mxbai", CorpusHash: "abc123"}))

	state, err := storage.GetIndexState(ctx, "dense")
	require.NoError(t, err)
	assert.Equal(t, 4, state.Documents)
	assert.Equal(t, "mxbai", state.Model)
	assert.Equal(t, "abc123", state.CorpusHash)
	assert.False(t, state.BuiltAt.IsZero())

	require.NoError(t, storage.DeleteIndexState(ctx, "dense"))
	_, err = storage.GetIndexState(ctx, "dense")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.False(t, status.Health.FTSIndexBuilt)
	assert.False(t, status.Health.EmbeddingsAvailable)

	require.NoError(t, storage.ReplaceDocuments(ctx, types.VariantCompact,
		testDocs(types.VariantCompact, [2]string{"compoz", "drug_name: compoz"})))
	require.NoError(t, storage.SetIndexState(ctx, &IndexState{Name: "sparse", Documents: 1}))

	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.CompactDocuments)
	assert.True(t, status.Health.FTSIndexBuilt)
	require.Len(t, status.States, 1)
	assert.Equal(t, "sparse", status.States[0].Name)
}

func TestBeginTx_CommitRollback(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	// Rolled back writes are discarded
	tx, err := storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.ReplaceDocuments(ctx, types.VariantFull,
		testDocs(types.VariantFull, [2]string{"compoz", "drug_name: compoz"})))
	require.NoError(t, tx.Rollback())

	n, err := storage.CountDocuments(ctx, types.VariantFull)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Committed writes persist
	tx, err = storage.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.ReplaceDocuments(ctx, types.VariantFull,
		testDocs(types.VariantFull, [2]string{"compoz", "drug_name: compoz"})))
	require.NoError(t, tx.SetIndexState(ctx, &IndexState{Name: "dense", Documents: 1}))
	require.NoError(t, tx.Commit())

	n, err = storage.CountDocuments(ctx, types.VariantFull)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = tx.BeginTx(ctx)
	assert.ErrorIs(t, err, ErrNestedTx)
}

func TestRollbackMigration(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	// Newest first: the corpus_hash column goes, the tables stay
	require.NoError(t, RollbackMigration(ctx, storage.db))
	_, err := storage.db.ExecContext(ctx, "SELECT corpus_hash FROM index_state")
	assert.Error(t, err)
	_, err = storage.CountDocuments(ctx, types.VariantFull)
	require.NoError(t, err)

	require.NoError(t, RollbackMigration(ctx, storage.db))
	var name string
	err = storage.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='documents'").Scan(&name)
	assert.Error(t, err)

	assert.Error(t, RollbackMigration(ctx, storage.db), "nothing left to roll back")

	// Migrations can be re-applied after a rollback
	require.NoError(t, ApplyMigrations(ctx, storage.db))
	_, err = storage.CountDocuments(ctx, types.VariantFull)
	assert.NoError(t, err)
	require.NoError(t, storage.SetIndexState(ctx, &IndexState{Name: "dense", CorpusHash: "h"}))
}
