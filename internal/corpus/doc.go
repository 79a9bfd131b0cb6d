// Package corpus loads the drug table and builds the lookup structures derived from it.
//
// Records come from a header-driven CSV source. Drug names pass through
// NormalizeName, the same function the query path uses, so a name typed by a
// user matches the loaded record:
//
//	records, err := corpus.LoadFile("data/drugs.csv", corpus.Options{})
//	if err != nil {
//	    var le *types.DataLoadError
//	    errors.As(err, &le) // missing file, missing column, malformed CSV
//	}
//	names := corpus.NewNameSet(records)
//	names.Detect("what is compoz used for?") // "compoz"
//
// The NameSet is immutable after construction and safe for concurrent use.
package corpus
