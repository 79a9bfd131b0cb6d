package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

func setupVectorTestData(t *testing.T, ctx context.Context, s *SQLiteStorage, vectors map[string][]float32, order []string) []*Document {
	t.Helper()

	pairs := make([][2]string, 0, len(order))
	for _, name := range order {
		pairs = append(pairs, [2]string{name, "drug_name: " + name})
	}
	docs := testDocs(types.VariantFull, pairs...)
	require.NoError(t, s.ReplaceDocuments(ctx, types.VariantFull, docs))

	for _, doc := range docs {
		vec := vectors[doc.DrugName]
		require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
			DocumentID: doc.ID,
			Vector:     SerializeVector(vec),
			Dimension:  len(vec),
			Provider:   "local",
			Model:      "test",
		}))
	}
	return docs
}

func TestSearchVector(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()
	docs := setupVectorTestData(t, ctx, s, map[string][]float32{
		"compoz":      {1, 0, 0},
		"sumatriptan": {0, 1, 0},
		"aspirin":     {0.7, 0.7, 0},
	}, []string{"compoz", "sumatriptan", "aspirin"})

	results, err := s.SearchVector(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, docs[0].ID, results[0].DocumentID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
	assert.Equal(t, docs[2].ID, results[1].DocumentID)
}

func TestSearchVector_DrugFilter(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()
	docs := setupVectorTestData(t, ctx, s, map[string][]float32{
		"compoz":      {1, 0},
		"sumatriptan": {0, 1},
	}, []string{"compoz", "sumatriptan"})

	results, err := s.SearchVector(ctx, []float32{1, 0}, 5, &SearchFilters{DrugName: "sumatriptan"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, docs[1].ID, results[0].DocumentID)

	results, err = s.SearchVector(ctx, []float32{1, 0}, 5, &SearchFilters{DrugName: "unknown"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVector_TiesKeepInsertionOrder(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()
	docs := setupVectorTestData(t, ctx, s, map[string][]float32{
		"b": {1, 1},
		"a": {1, 1},
		"c": {1, 1},
	}, []string{"b", "a", "c"})

	results, err := s.SearchVector(ctx, []float32{1, 1}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := range docs {
		assert.Equal(t, docs[i].ID, results[i].DocumentID)
	}
}

func TestSearchVectorEdgeCases(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()
	setupVectorTestData(t, ctx, s, map[string][]float32{
		"compoz": {1, 0, 0},
	}, []string{"compoz"})

	t.Run("zero limit", func(t *testing.T) {
		results, err := s.SearchVector(ctx, []float32{1, 0, 0}, 0, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("dimension mismatch skipped", func(t *testing.T) {
		results, err := s.SearchVector(ctx, []float32{1, 0}, 3, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestSearchText(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()
	docs := testDocs(types.VariantCompact,
		[2]string{"compoz", "drug_name: compoz\nmedical_condition: Insomnia\nside_effects: drowsiness"},
		[2]string{"sumatriptan", "drug_name: sumatriptan\nmedical_condition: Migraine\nside_effects: tingling"},
		[2]string{"rizatriptan", "drug_name: rizatriptan\nmedical_condition: Migraine\nside_effects: dizziness"},
	)
	require.NoError(t, s.ReplaceDocuments(ctx, types.VariantCompact, docs))

	results, err := s.SearchText(ctx, "medicine for migraine?", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, docs[1].ID, results[0].DocumentID)
	assert.Equal(t, docs[2].ID, results[1].DocumentID)
	for _, r := range results {
		assert.Greater(t, r.BM25Score, 0.0)
		assert.Less(t, r.BM25Score, 1.0)
	}
	assert.GreaterOrEqual(t, results[0].BM25Score, results[1].BM25Score)

	results, err = s.SearchText(ctx, "migraine", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchText_StrongerMatchScoresHigher(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()
	docs := testDocs(types.VariantCompact,
		[2]string{"weak", "drug_name: weak\nmedical_condition: tension headache, occasional migraine, back pain and general muscle soreness after exercise"},
		[2]string{"strong", "drug_name: strong\nmedical_condition: migraine\nside_effects: migraine rebound, migraine aura"},
		[2]string{"compoz", "drug_name: compoz\nmedical_condition: insomnia"},
		[2]string{"doxycycline", "drug_name: doxycycline\nmedical_condition: acne"},
		[2]string{"benadryl", "drug_name: benadryl\nmedical_condition: allergies"},
	)
	require.NoError(t, s.ReplaceDocuments(ctx, types.VariantCompact, docs))

	results, err := s.SearchText(ctx, "migraine", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, docs[1].ID, results[0].DocumentID, "repeated term in a short document ranks first")
	assert.Equal(t, docs[0].ID, results[1].DocumentID)
	assert.Greater(t, results[0].BM25Score, results[1].BM25Score)
}

func TestNormalizeBM25(t *testing.T) {
	assert.Equal(t, 0.0, normalizeBM25(0))
	assert.Equal(t, 0.0, normalizeBM25(0.5))
	assert.InDelta(t, 0.5, normalizeBM25(-1), 1e-12)
	assert.Greater(t, normalizeBM25(-3), normalizeBM25(-2))
	assert.Greater(t, normalizeBM25(-1e-6), 0.0)
}

func TestSearchText_Edges(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()

	ctx := context.Background()

	// Empty corpus
	results, err := s.SearchText(ctx, "x", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.ReplaceDocuments(ctx, types.VariantCompact,
		testDocs(types.VariantCompact, [2]string{"compoz", "drug_name: compoz"})))

	// No terms
	results, err = s.SearchText(ctx, "?!", 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	// FTS operators in user input are treated as plain terms
	results, err = s.SearchText(ctx, `compoz AND "NOT" (*`, 3)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Full documents are not indexed for text search
	require.NoError(t, s.ReplaceDocuments(ctx, types.VariantCompact, nil))
	require.NoError(t, s.ReplaceDocuments(ctx, types.VariantFull,
		testDocs(types.VariantFull, [2]string{"compoz", "drug_name: compoz"})))
	results, err = s.SearchText(ctx, "compoz", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestBuildFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Migraine", `"migraine"`},
		{"side effects of side", `"side" OR "effects" OR "of"`},
		{`a "b" OR c*`, `"a" OR "b" OR "or" OR "c"`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFTSQuery(tt.in))
		})
	}
}

func TestVectorSerialization(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	assert.Equal(t, vec, DeserializeVector(SerializeVector(vec)))
	assert.Len(t, SerializeVector(vec), 12)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}
