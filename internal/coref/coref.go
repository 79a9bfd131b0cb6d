// Package coref rewrites pronouns in a follow-up query to the drug the
// conversation last mentioned.
package coref

import (
	"regexp"
	"strings"

	"github.com/dshills/medcontext-mcp/pkg/types"
)

// Pronouns that refer back to the last mentioned drug
var Pronouns = []string{"its", "it", "this", "that"}

var pronounPattern = regexp.MustCompile(`(?i)\b(?:` + strings.Join(Pronouns, "|") + `)\b`)

// Resolve replaces every whole-word pronoun in query with the last
// mentioned drug. The query is returned unchanged when no drug is known
// or no pronoun is present. cc is never modified.
func Resolve(query string, cc types.ConversationContext) (string, bool) {
	if !cc.HasDrug() || !pronounPattern.MatchString(query) {
		return query, false
	}

	drug := cc.LastMentionedDrug
	return pronounPattern.ReplaceAllLiteralString(query, drug), true
}
