// Package searcher answers retrieval queries over the drug document indices.
//
// Two indices back every query:
//
//   - SparseIndex: SQLite FTS5 bm25 over compact documents
//   - DenseIndex: cosine similarity over embeddings of full documents
//
// HybridRetriever runs both concurrently and concatenates dense results
// before sparse ones, dropping later documents whose content was already
// returned:
//
//	h := searcher.NewHybridRetriever(dense, sparse, searcher.HybridOptions{
//	    KDense:  2,
//	    KSparse: 2,
//	})
//	docs, err := h.Retrieve(ctx, "medicine for migraine")
//
// The result never holds more than KDense+KSparse documents. Indices are
// read-only once built, so retrieved lists may be cached per query.
//
// # Building
//
// SparseIndex.Build rewrites its documents in one transaction.
// DenseIndex.Build is idempotent across restarts: a persisted marker
// recording the embedding model and document count lets later builds reuse
// the stored vectors. The marker is written only after every embedding is
// stored.
//
// # Direct search
//
// Searcher exposes a single index or the hybrid retriever by mode, for
// callers that want raw documents rather than answers.
package searcher
