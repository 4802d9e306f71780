package prompt

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"
	"github.com/williammiras/dash/internal/models"
)

// Persona is the static policy text every prompt starts with.
const Persona = `You are a highly knowledgeable and helpful AI assistant that specializes in finding publicly available datasets
for data science and machine learning projects.

Your job is to help the user find the most relevant, high-quality datasets based on their request.

Only return datasets that are:
- Publicly accessible or easily downloadable.
- Clearly related to the user's topic.
- Preferably from trusted sources like Kaggle, Data.gov, UCI Machine Learning Repository, Google Dataset Search,
or academic/public research repositories.

For each dataset, provide:
1. **Dataset Name**
2. **Short Description**
3. **Source URL**
4. (Optional) Notable features (e.g., columns, format, size)

If the user's request is unclear or vague, ask clarifying questions first for more context before suggesting datasets.
If the user's request does not relate to datasets, politely inform them that you can only assist with dataset-related queries.
Use the search tool to confirm every dataset you recommend and list every tool you called in tools_used.`

const templateText = `{{.persona}}

Chat History:
{{.chat_history}}

User Query:
{{.query}}

Your final answer should be a structured JSON object with the following fields:
{{.format_instructions}}`

const emptyHistory = "(no previous messages)"

// Template renders the complete instruction text sent to the agent.
type Template struct {
	pt prompts.PromptTemplate
}

// New builds a template with the persona and the output format instructions bound.
func New(persona, formatInstructions string) Template {
	return Template{pt: prompts.PromptTemplate{
		Template:       templateText,
		TemplateFormat: prompts.TemplateFormatGoTemplate,
		InputVariables: []string{"chat_history", "query"},
		PartialVariables: map[string]any{
			"persona":             persona,
			"format_instructions": formatInstructions,
		},
	}}
}

// Render substitutes the history and query. It has no other logic.
func (t Template) Render(query string, history []models.Turn) (string, error) {
	out, err := t.pt.Format(map[string]any{
		"chat_history": FormatHistory(history),
		"query":        query,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return out, nil
}

// FormatHistory renders turns one per line as "Human: ..." / "AI: ...".
func FormatHistory(history []models.Turn) string {
	if len(history) == 0 {
		return emptyHistory
	}
	var b strings.Builder
	for i, turn := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch turn.Role {
		case models.RoleAssistant:
			b.WriteString("AI: ")
		default:
			b.WriteString("Human: ")
		}
		b.WriteString(turn.Text)
	}
	return b.String()
}
