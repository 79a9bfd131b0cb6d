// Package embedder turns drug documents and user queries into vectors.
//
// Three providers are available:
//
//   - ollama: langchaingo client against an Ollama server (default
//     model nomic-embed-text)
//   - openai: langchaingo client against any OpenAI-compatible endpoint
//   - local: offline token hashing into 384 buckets, deterministic, for
//     development and tests
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "ollama",
//	    Host:      "http://localhost:11434",
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{doc1.Content, doc2.Content},
//	})
//
// Batches are capped at MaxBatchSize texts.
//
// # Caching
//
// Results are cached in an LRU keyed by model and the SHA-256 of the text.
// Get returns a copy, so callers may mutate vectors freely.
//
// # Errors
//
// Failures of the remote service are returned as *types.UpstreamServiceError.
// A single attempt is made unless Config.Attempts asks for more; retries use
// exponential backoff and stop on context cancellation.
package embedder
