package core

import (
	"strings"
	"text/template"
)

// NoPreferences is what the preference summarizer yields when the
// conversation states no constraints.
const NoPreferences = "none"

const (
	RewriteInstruction = "Rewrite the latest user message as a standalone question using chat_history. " +
		"Return only the rewritten question."

	PreferenceInstruction = "From chat_history and the latest user input, extract the user's " +
		"preferences and constraints as short bullets: budget, brands, features, " +
		"use-case, dislikes, previously chosen items. Only use what the user said explicitly.\n" +
		`If nothing explicit, return "none".`

	preferenceHumanPrefix = "New request: "
	answerHumanPrefix     = "QUESTION: "

	noDocumentsContext = "(no product documents matched this request)"
)

var answerSystemTemplate = template.Must(template.New("answer").Parse(
	`You are a product recommender. Combine three signals:

1) **chat_history/memory**: tailor suggestions to the preferences and constraints the user stated.
2) **CONTEXT** (retrieved documents): the source of truth for product facts such as names, specs and reviews.
   If a fact is not in CONTEXT, do not present it as certain.
3) **General knowledge**: generic buying tips are fine, but never contradict CONTEXT.

When the question is about the conversation itself (for example "what did I ask first?"),
answer from chat_history/memory instead of the documents.

Format the answer in clean Markdown: a brief TL;DR followed by short bullets.

MEMORY:
{{.Memory}}

CONTEXT:
{{.Context}}`))

// stuffDocuments joins document contents into one context block.
func stuffDocuments(docs []Document) string {
	if len(docs) == 0 {
		return noDocumentsContext
	}
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}

func renderAnswerSystem(memory string, docs []Document) (string, error) {
	var b strings.Builder
	err := answerSystemTemplate.Execute(&b, struct {
		Memory  string
		Context string
	}{
		Memory:  memory,
		Context: stuffDocuments(docs),
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
