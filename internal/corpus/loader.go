package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/unicode/norm"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Column names of the drug table
const (
	ColDrugName         = "drug_name"
	ColGenericName      = "generic_name"
	ColMedicalCondition = "medical_condition"
	ColSideEffects      = "side_effects"
	ColDrugClass        = "drug_class"
	ColBrandNames       = "brand_names"
	ColActivity         = "activity"
	ColRating           = "rating"
	ColReviewCount      = "review_count"
	ColRxOTC            = "rx_otc_status"
	ColRelatedDrugs     = "related_drugs"
)

// columnAliases maps header spellings found in the drugs.com export to canonical columns
var columnAliases = map[string]string{
	"drug_classes":  ColDrugClass,
	"no_of_reviews": ColReviewCount,
	"rx_otc":        ColRxOTC,
}

// RequiredColumns must be present in every source
var RequiredColumns = []string{ColDrugName, ColMedicalCondition}

// Encoding names accepted by Options.Encoding
const (
	EncodingUTF8    = "utf-8"
	EncodingWin1252 = "windows-1252"
	EncodingLatin1  = "iso-8859-1"
)

// Options controls how a source is read
type Options struct {
	// Encoding of the source bytes (default utf-8)
	Encoding string
	// Comma is the field delimiter (default ',')
	Comma rune
}

// LoadFile reads the drug table at path
func LoadFile(path string, opts Options) ([]types.DrugRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &types.DataLoadError{Source: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	records, err := load(f, path, opts)
	if err != nil {
		return nil, err
	}

	slog.Default().With("component", "corpus").Info("drug corpus loaded", "path", path, "records", len(records))
	return records, nil
}

// Load reads the drug table from r
func Load(r io.Reader, opts Options) ([]types.DrugRecord, error) {
	return load(r, "reader", opts)
}

func load(r io.Reader, source string, opts Options) ([]types.DrugRecord, error) {
	dec, err := decoderFor(opts.Encoding)
	if err != nil {
		return nil, &types.DataLoadError{Source: source, Err: err}
	}
	if dec != nil {
		r = dec.Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &types.DataLoadError{Source: source, Err: errors.New("empty source: no header row")}
	}
	if err != nil {
		return nil, &types.DataLoadError{Source: source, Err: fmt.Errorf("read header: %w", err)}
	}

	columns := indexColumns(header)
	for _, col := range RequiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, &types.DataLoadError{Source: source, Err: fmt.Errorf("%w: %s", types.ErrMissingColumn, col)}
		}
	}

	records := make([]types.DrugRecord, 0, 1024)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &types.DataLoadError{Source: source, Err: fmt.Errorf("read row %d: %w", len(records)+1, err)}
		}
		if isBlankRow(row) {
			continue
		}

		records = append(records, buildRecord(len(records), row, columns))
	}

	return records, nil
}

// buildRecord maps one CSV row onto a DrugRecord, substituting sentinels for missing values
func buildRecord(pos int, row []string, columns map[string]int) types.DrugRecord {
	get := func(col string) string {
		idx, ok := columns[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return cleanValue(row[idx])
	}

	generic := get(ColGenericName)
	if generic == "" {
		generic = types.NotAvailable
	}

	return types.DrugRecord{
		Row:              pos,
		DrugName:         NormalizeName(get(ColDrugName)),
		GenericName:      generic,
		MedicalCondition: get(ColMedicalCondition),
		SideEffects:      get(ColSideEffects),
		DrugClass:        get(ColDrugClass),
		BrandNames:       get(ColBrandNames),
		Activity:         get(ColActivity),
		Rating:           get(ColRating),
		ReviewCount:      get(ColReviewCount),
		RxOTC:            get(ColRxOTC),
		RelatedDrugs:     get(ColRelatedDrugs),
	}
}

// NormalizeName is the single normalization applied to drug names at load time and at query time
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}

// NormalizeQuery lowercases and trims a user query the same way drug names are normalized
func NormalizeQuery(query string) string {
	return NormalizeName(query)
}

// cleanValue trims a cell and maps the spreadsheet spellings of "missing" to empty
func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "nan", "null", "none":
		return ""
	}
	return v
}

func indexColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	return columns
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func decoderFor(name string) (*encoding.Decoder, error) {
	switch strings.ToLower(name) {
	case "", EncodingUTF8, "utf8":
		return nil, nil
	case EncodingWin1252, "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	case EncodingLatin1, "latin1":
		return charmap.ISO8859_1.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// SupportedEncoding reports whether name is accepted by Options.Encoding
func SupportedEncoding(name string) bool {
	_, err := decoderFor(name)
	return err == nil
}
