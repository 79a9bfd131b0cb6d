package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// searchVector ranks full documents by cosine similarity to queryVector.
// Equal scores keep insertion order.
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if limit <= 0 {
		return []VectorResult{}, nil
	}

	query := `
		SELECT
			d.id,
			d.position,
			e.vector
		FROM documents d
		INNER JOIN embeddings e ON d.id = e.document_id
		WHERE d.variant = 'full'
	`
	args := []interface{}{}

	if filters != nil && filters.DrugName != "" {
		query += " AND d.drug_name = ?"
		args = append(args, filters.DrugName)
	}
	query += " ORDER BY d.position"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]candidate, 0, 256)
	for rows.Next() {
		var c candidate
		var vectorBlob []byte
		if err := rows.Scan(&c.documentID, &c.position, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		c.score = cosineSimilarity(queryVector, vector)
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortCandidates(candidates)

	if limit > len(candidates) {
		limit = len(candidates)
	}
	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			DocumentID:      candidates[i].documentID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results, nil
}

// searchText performs BM25 full-text search over compact documents.
// A query with no searchable terms matches nothing.
func searchText(ctx context.Context, q querier, query string, limit int) ([]TextResult, error) {
	if limit <= 0 {
		return []TextResult{}, nil
	}

	match := buildFTSQuery(query)
	if match == "" {
		return []TextResult{}, nil
	}

	sqlQuery := `
		SELECT
			d.id,
			bm25(sparse_fts) AS score
		FROM sparse_fts
		INNER JOIN documents d ON d.id = sparse_fts.rowid
		WHERE sparse_fts MATCH ?
		ORDER BY score, d.position
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, sqlQuery, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]TextResult, 0, limit)
	for rows.Next() {
		var result TextResult
		if err := rows.Scan(&result.DocumentID, &result.BM25Score); err != nil {
			return nil, err
		}
		result.BM25Score = normalizeBM25(result.BM25Score)
		results = append(results, result)
	}
	return results, rows.Err()
}

// normalizeBM25 maps a raw bm25() value onto [0, 1). FTS5 scores are
// negative with stronger matches further from zero, so relevance is -raw.
func normalizeBM25(raw float64) float64 {
	x := -raw
	if x <= 0 {
		return 0
	}
	return x / (1 + x)
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a document with its similarity score
type candidate struct {
	documentID int64
	position   int
	score      float64
}

// sortCandidates sorts candidates by score in descending order, keeping
// insertion order for ties
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].position < candidates[j].position
	})
}

var ftsTermPattern = regexp.MustCompile(`[\pL\pN]+`)

// buildFTSQuery turns free text into an FTS5 expression that ORs every
// term. Terms are quoted so operators and punctuation in user input are
// never interpreted by FTS5.
func buildFTSQuery(query string) string {
	terms := ftsTermPattern.FindAllString(strings.ToLower(query), -1)
	if len(terms) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(terms))
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		quoted = append(quoted, `"`+term+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
