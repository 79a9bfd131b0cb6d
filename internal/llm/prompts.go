package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// Context limits applied before rendering, in runes
const (
	QAContextLimit      = 1500
	CompareContextLimit = 3000
	SuggestContextLimit = 3000
)

// NotAvailable is the fixed reply when nothing relevant was retrieved
const NotAvailable = "The information is not available in the current data."

const qaTemplate = `
You are MedBuddy, a helpful and trustworthy AI medical assistant.

Based on the context below, answer the user's question clearly, concisely, and in your own words.
Summarize any symptoms or side effects neatly and avoid copying raw text.
If the answer is not present in the context, respond with:
"` + NotAvailable + `"

Context:
{{.context}}

Question:
{{.question}}

Answer:
`

const explanationTemplate = `
You are MedBuddy, a medical assistant who explains complex medical terminology in a clear, simple, and accurate way.

Explain the following medical term or side effect in a patient-friendly way:

Term: {{.term}}

Make it concise, helpful, and medically accurate.
`

const comparisonTemplate = `
You are MedBuddy, a helpful and concise AI medical assistant.

Compare the following two drugs based on the medical context below.

Drugs: {{.drug1}} and {{.drug2}}

Instructions:
- Mention common and differing uses.
- List key side effects, risks, or warnings.
- Highlight any significant pros or cons.
- Be clear and structured (use markdown if needed).

Context:
{{.context}}

Answer:
`

const suggestionTemplate = `
You are MedBuddy, an AI medical assistant.

A user described their symptoms as: "{{.symptoms}}".

Based on the context below (which includes drug descriptions), suggest appropriate medications:
- Summarize why the drug may be suitable.
- Mention relevant conditions or benefits.
- Avoid giving definitive prescriptions.

Context:
{{.context}}

Answer:
`

var (
	qaPrompt          = prompts.NewPromptTemplate(qaTemplate, []string{"context", "question"})
	explanationPrompt = prompts.NewPromptTemplate(explanationTemplate, []string{"term"})
	comparisonPrompt  = prompts.NewPromptTemplate(comparisonTemplate, []string{"drug1", "drug2", "context"})
	suggestionPrompt  = prompts.NewPromptTemplate(suggestionTemplate, []string{"symptoms", "context"})
)

// QAPrompt renders the retrieval question-answering prompt. The context is
// truncated to QAContextLimit.
func QAPrompt(context, question string) (string, error) {
	return render(qaPrompt, map[string]any{
		"context":  Truncate(context, QAContextLimit),
		"question": question,
	})
}

// ExplanationPrompt renders the plain-language term explanation prompt
func ExplanationPrompt(term string) (string, error) {
	return render(explanationPrompt, map[string]any{"term": term})
}

// ComparisonPrompt renders the two-drug comparison prompt
func ComparisonPrompt(drugA, drugB, context string) (string, error) {
	return render(comparisonPrompt, map[string]any{
		"drug1":   drugA,
		"drug2":   drugB,
		"context": Truncate(context, CompareContextLimit),
	})
}

// SuggestionPrompt renders the symptom based medication suggestion prompt
func SuggestionPrompt(symptoms, context string) (string, error) {
	return render(suggestionPrompt, map[string]any{
		"symptoms": symptoms,
		"context":  Truncate(context, SuggestContextLimit),
	})
}

func render(tmpl prompts.PromptTemplate, values map[string]any) (string, error) {
	out, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return out, nil
}
