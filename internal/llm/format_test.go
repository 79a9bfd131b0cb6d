package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractAnswer(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no marker", "  plain text  ", "plain text"},
		{"single marker", "Question: x\nAnswer: it helps", "it helps"},
		{"last marker wins", "Answer: one\nAnswer: two", "two"},
		{"empty after marker", "Answer:   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAnswer(tt.in))
		})
	}
}

func TestFormatMarkdown_Warning(t *testing.T) {
	out := FormatMarkdown("It may harm the baby. Please consult your doctor first")
	assert.Contains(t, out, "⚠️ **consult your doctor**")
}

func TestFormatMarkdown_Bullets(t *testing.T) {
	out := FormatMarkdown("side effects may include: dizziness, nausea, dry mouth. Take with food.")
	assert.Equal(t, "**Side effects may include**:\n- dizziness\n- nausea\n- dry mouth\nTake with food.", out)
}

func TestFormatMarkdown_Headings(t *testing.T) {
	out := FormatMarkdown("Uses: migraine relief\nDosage: 50 mg")
	assert.Equal(t, "**Uses:** migraine relief\n**Dosage:** 50 mg", out)
}

func TestFormatMarkdown_URL(t *testing.T) {
	out := FormatMarkdown("see https://www.drugs.com/sumatriptan.html")
	assert.Equal(t, "see <https://www.drugs.com/sumatriptan.html>", out)
}

func TestFormatMarkdown_Plain(t *testing.T) {
	assert.Equal(t, "it treats migraines", FormatMarkdown("  it treats migraines \n"))
	assert.Equal(t, "", FormatMarkdown(""))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "héllo", Truncate("héllo", 5))
	assert.Equal(t, "héllo", Truncate("héllo", 50))
	assert.Equal(t, "", Truncate("héllo", 0))
	assert.Equal(t, "héllo", Truncate("héllo", -1))
}
