package types

// ConversationContext is the per-session state used to resolve pronouns
type ConversationContext struct {
	LastMentionedDrug string
}

// HasDrug reports whether a drug has been mentioned in the session
func (c ConversationContext) HasDrug() bool {
	return c.LastMentionedDrug != ""
}

// Remember records drug as the most recently mentioned drug.
// Empty names are ignored so an undetected drug never clears the context.
func (c *ConversationContext) Remember(drug string) bool {
	if drug == "" || drug == c.LastMentionedDrug {
		return false
	}
	c.LastMentionedDrug = drug
	return true
}
