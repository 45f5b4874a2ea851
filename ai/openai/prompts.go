package openai

import "fmt"

const summaryPromptTemplate = `Summarize the text given by the user in one plain sentence.

Rules:
- Use at most %d characters.
- Output only the summary. Do not include any preamble, quotes, markdown or explanation.
- Name the concrete subject of the text (a tool, an API, a procedure) rather than describing it as "the text".
- Do not add facts that are not in the text.`

func buildSystemPrompt(maxChars int) string {
	return fmt.Sprintf(summaryPromptTemplate, maxChars)
}
