package llm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// AnswerMarker separates echoed prompt text from the answer in raw completions
const AnswerMarker = "Answer:"

var (
	warningPattern = regexp.MustCompile(`(?i)(birth defects|do not.*pregnant|consult.*doctor|serious allergic reactions|seek.*immediate.*attention)`)

	bulletPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(side effects (?:can|may|might)? (?:include|cause|involve|be).*?):\s*(.+?)(?:\.\s|$)`),
		regexp.MustCompile(`(?i)(may (?:include|cause|lead to))\s+(.+?)(?:\.\s|$)`),
		regexp.MustCompile(`(?i)(common (?:effects|symptoms) (?:are|include))\s+(.+?)(?:\.\s|$)`),
		regexp.MustCompile(`(?i)(this drug (?:can|may|might) (?:cause|lead to|result in))\s+(.+?)(?:\.\s|$)`),
	}

	headingPattern = regexp.MustCompile(`(^|\n)([A-Z][^\n:]{3,40}):`)
	urlPattern     = regexp.MustCompile(`(https?://\S+)`)
)

// ExtractAnswer returns the text after the last AnswerMarker, trimmed.
// Text without a marker is returned trimmed.
func ExtractAnswer(text string) string {
	if i := strings.LastIndex(text, AnswerMarker); i >= 0 {
		text = text[i+len(AnswerMarker):]
	}
	return strings.TrimSpace(text)
}

// FormatMarkdown decorates an answer for display: warnings are flagged,
// side effect enumerations become bullet lists, short "Heading:" lines are
// bolded and bare URLs become autolinks.
func FormatMarkdown(text string) string {
	text = strings.TrimSpace(text)

	text = warningPattern.ReplaceAllString(text, "\n\n⚠️ **$1**")

	for _, re := range bulletPatterns {
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			groups := re.FindStringSubmatch(match)
			return bulletList(groups[1], groups[2])
		})
	}

	text = headingPattern.ReplaceAllString(text, "$1**$2:**")
	text = urlPattern.ReplaceAllString(text, "<$1>")

	return strings.TrimSpace(text)
}

func bulletList(lead, items string) string {
	var b strings.Builder
	b.WriteString("**")
	b.WriteString(capitalize(lead))
	b.WriteString("**:\n")
	for _, item := range strings.Split(items, ",") {
		if item = strings.TrimSpace(item); item != "" {
			b.WriteString("- ")
			b.WriteString(item)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// capitalize upper-cases the first rune and lower-cases the rest
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// Truncate cuts s to at most limit runes
func Truncate(s string, limit int) string {
	if limit < 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
