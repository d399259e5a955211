package llm

import (
	"fmt"
	"strings"
)

// UnknownAnswer is returned verbatim when the documents do not contain the answer.
const UnknownAnswer = "I don't know based on the provided documents."

const answerSystemPrompt = `You are a careful and factual assistant.

Your task is to answer the user's question using ONLY the provided context.

Before answering, think step by step to analyze the context.

Follow these rules strictly:

1. Use ONLY the information present in the context.
2. If the answer is not explicitly stated in the context, respond with:
   "` + UnknownAnswer + `"
   This rule has the highest priority.
3. Do NOT use outside knowledge or assumptions.
4. Do NOT rephrase facts in a misleading way.
5. Cite the source number (e.g., [Source 1]) after each factual statement.
6. Keep the answer concise, precise, and professional.

Context:
%s`

const expandSystemPrompt = `You rewrite search queries for a document retrieval system.

Produce exactly %d alternative phrasings of the user's question. Each phrasing must
keep the original meaning, may use synonyms or expand abbreviations, and must be
a standalone question or keyword query.

Output one phrasing per line. Do not number the lines. Do not add commentary.`

// FormatContext renders grounding texts as "[Source i]: text" blocks, 1-based.
func FormatContext(sources []string) string {
	var sb strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&sb, "\n[Source %d]: %s", i+1, s)
	}
	return sb.String()
}

func buildAnswerPrompt(sources []string) string {
	return fmt.Sprintf(answerSystemPrompt, FormatContext(sources))
}

func buildExpandPrompt(k int) string {
	return fmt.Sprintf(expandSystemPrompt, k)
}
