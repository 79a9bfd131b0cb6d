// Package storage provides SQLite-based persistence for the drug document
// indices.
//
// Tables:
//   - documents: projected drug records, both full and compact variants
//   - sparse_fts: FTS5 index over compact documents, kept in sync by triggers
//   - embeddings: float32 vectors for full documents, little-endian blobs
//   - index_state: build markers that make index builds idempotent
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("data/medcontext.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.ReplaceDocuments(ctx, types.VariantCompact, docs)
//	hits, err := db.SearchText(ctx, "migraine", 3)
//
// ReplaceDocuments swaps an entire variant in one transaction. Deleting full
// documents cascades to their embeddings.
//
// # Vector Search
//
// Cosine similarity is computed in Go over every stored vector of the full
// variant, optionally narrowed to a single drug name. Equal scores keep
// insertion order.
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler:
//
//	CGO_ENABLED=0 go build ./...
//
// The CGO build uses github.com/mattn/go-sqlite3 and must enable FTS5:
//
//	CGO_ENABLED=1 go build -tags "sqlite_cgo,sqlite_fts5" ./...
package storage
