// Package indexer builds the dense and sparse indices from loaded drug
// records.
//
// Build projects every record into a full and a compact document, then
// builds the dense index from full documents and the sparse index from
// compact documents concurrently:
//
//	idx := indexer.New(denseIndex, sparseIndex, m)
//	stats, err := idx.Build(ctx, records)
//	if err != nil {
//	    return err // *types.IndexBuildError
//	}
//
// Builds are single-flight per Indexer. The dense index persists a marker
// so rebuilding an unchanged corpus with the same embedding model reuses
// the stored vectors (Statistics.DenseReused).
package indexer
