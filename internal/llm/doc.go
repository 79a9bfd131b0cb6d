// Package llm is the language-model collaborator. It renders the fixed
// prompts, sends them through langchaingo to Ollama or an OpenAI-compatible
// server, and post-processes completions into display markdown.
//
//	gen, err := llm.New(llm.Config{Provider: "ollama", Model: "mistral"})
//	prompt, err := llm.QAPrompt(context, question)
//	raw, err := gen.Generate(ctx, prompt)
//	answer := llm.FormatMarkdown(llm.ExtractAnswer(raw))
package llm
