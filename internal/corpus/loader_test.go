package corpus

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

const sampleCSV = `drug_name,medical_condition,side_effects,generic_name,drug_classes,brand_names,activity,rx_otc,pregnancy_category,rating,no_of_reviews,related_drugs
  Compoz ,Insomnia,drowsiness,diphenhydramine,antihistamines,Compoz,12%,OTC,B,6.5,10,unisom
doxycycline,Acne,nausea,doxycycline,tetracyclines,Doryx,87%,Rx,D,6.8,760,minocycline
Doxycycline,Rosacea,nausea,,tetracyclines,,,Rx,D,,,
`

func TestLoadNormalizesDrugNames(t *testing.T) {
	records, err := Load(strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "compoz", records[0].DrugName)
	assert.Equal(t, "doxycycline", records[1].DrugName)
	assert.Equal(t, "doxycycline", records[2].DrugName, "duplicate names are retained")

	for i, rec := range records {
		assert.Equal(t, i, rec.Row)
		assert.Equal(t, strings.ToLower(strings.TrimSpace(rec.DrugName)), rec.DrugName)
	}
}

func TestLoadMapsColumnAliases(t *testing.T) {
	records, err := Load(strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)

	rec := records[1]
	assert.Equal(t, "tetracyclines", rec.DrugClass)
	assert.Equal(t, "760", rec.ReviewCount)
	assert.Equal(t, "Rx", rec.RxOTC)
	assert.Equal(t, "minocycline", rec.RelatedDrugs)
	assert.Equal(t, "Acne", rec.MedicalCondition, "non-name fields pass through unmodified")
}

func TestLoadSubstitutesSentinels(t *testing.T) {
	records, err := Load(strings.NewReader(sampleCSV), Options{})
	require.NoError(t, err)

	rec := records[2]
	assert.Equal(t, types.NotAvailable, rec.GenericName)
	assert.Equal(t, "", rec.BrandNames)
	assert.Equal(t, "", rec.Rating)
}

func TestLoadMissingRequiredColumn(t *testing.T) {
	_, err := Load(strings.NewReader("drug_name,side_effects\ncompoz,drowsiness\n"), Options{})
	require.Error(t, err)

	var le *types.DataLoadError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, types.ErrMissingColumn)
	assert.Contains(t, err.Error(), ColMedicalCondition)
}

func TestLoadEmptySource(t *testing.T) {
	_, err := Load(strings.NewReader(""), Options{})
	var le *types.DataLoadError
	assert.True(t, errors.As(err, &le))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	var le *types.DataLoadError
	require.True(t, errors.As(err, &le))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadFileWindows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drugs.csv")
	// 0xE9 is "é" in Windows-1252
	content := []byte("drug_name,medical_condition\nactiv\xe9,Acne\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	records, err := LoadFile(path, Options{Encoding: EncodingWin1252})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "activé", records[0].DrugName)
}

func TestLoadUnsupportedEncoding(t *testing.T) {
	_, err := Load(strings.NewReader(sampleCSV), Options{Encoding: "ebcdic"})
	var le *types.DataLoadError
	assert.True(t, errors.As(err, &le))
}

func TestLoadSkipsBlankRows(t *testing.T) {
	records, err := Load(strings.NewReader("drug_name,medical_condition\ncompoz,Insomnia\n,\nnytol,Insomnia\n"), Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[1].Row)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Compoz ", "compoz"},
		{"ADVIL", "advil"},
		{"\tTylenol PM\n", "tylenol pm"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), tt.in)
	}
}
