package guidance

import (
	"fmt"
	"strings"

	"github.com/lifeflow/guidance/internal/model"
)

const generateSystemPrompt = `You are an assistant helping people in India navigate government and legal procedures. You ground every suggestion in the provided official documents. You never present yourself as a lawyer and never guarantee outcomes. Respond only with valid JSON.`

func buildGuidancePrompt(query, domain string, chunks []model.RetrievedChunk) string {
	var sb strings.Builder

	sb.WriteString("Official documents relevant to the situation:\n\n")
	for i, ch := range chunks {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, ch.Title, ch.Authority, ch.Text)
	}

	fmt.Fprintf(&sb, "Situation (domain: %s):\n%s\n\n", domain, query)

	sb.WriteString(`Based only on the documents above, suggest concrete next steps. Respond with JSON in exactly this format:
{
  "suggestions": [
    {
      "title": "short action title",
      "description": "what to do, concretely",
      "why_it_matters": "consequence of doing or skipping this",
      "urgency": "high|medium|low",
      "can_skip": false,
      "estimated_time": "e.g. 2-3 weeks"
    }
  ],
  "confidence": 0.0,
  "caveats": ["facts the documents did not cover"]
}

Rules:
- Every suggestion must be supported by the documents. If the documents do not cover something, say so in caveats instead of guessing.
- confidence is your own 0.0-1.0 estimate of how well the documents answer this situation.
- At most 5 suggestions, ordered most important first.`)

	return sb.String()
}

func buildGuidanceRepairPrompt(query string, badOutput string) string {
	return fmt.Sprintf(`Your previous response was not valid JSON in the required format.

Previous response:
%s

Respond again for the situation below with ONLY a JSON object containing "suggestions" (array), "confidence" (number 0.0-1.0), and "caveats" (array of strings). No prose outside the JSON.

Situation:
%s`, badOutput, query)
}
