package classify

import (
	"fmt"
	"strings"

	"github.com/lifeflow/guidance/internal/domain"
)

const classifySystemPrompt = `You are a domain classification system for legal and administrative procedures.

Your task is to analyze user queries and classify them into the most appropriate domain.

CRITICAL RULES:
1. Classify based on the ACTUAL problem described, not keywords alone
2. Consider the user's intent and situation
3. Provide confidence based on clarity of the query
4. Identify related domains that might also be relevant
5. Generate a user-friendly summary of what you understood

Be precise but acknowledge uncertainty when the query is ambiguous.`

// buildClassifyPrompt constructs the classification prompt with the full
// taxonomy so the model can only pick from the closed set.
func buildClassifyPrompt(userQuery string) string {
	var sb strings.Builder

	sb.WriteString("Available domains:\n\n")
	for _, d := range domain.All() {
		info, _ := domain.Lookup(d)
		fmt.Fprintf(&sb, "**%s**\n", d)
		fmt.Fprintf(&sb, "- Description: %s\n", info.Description)
		fmt.Fprintf(&sb, "- Sub-domains: %s\n\n", strings.Join(info.SubDomains, ", "))
	}

	fmt.Fprintf(&sb, "User Query: %q\n\n", userQuery)
	sb.WriteString(`Analyze this query and provide classification in JSON format:

{
    "primary_domain": "The main domain this query belongs to",
    "secondary_domain": "Specific sub-domain if applicable (optional)",
    "related_domains": ["Other domains that might be relevant"],
    "confidence": 0.85,
    "user_friendly_summary": "A brief, clear summary of what the user is asking about",
    "suggested_keywords": ["key", "terms", "from", "query"],
    "reasoning": "Brief explanation of why you chose this classification"
}

IMPORTANT:
- Be honest about confidence - if the query is vague, lower the confidence
- Confidence must be a number between 0.0 and 1.0
- Consider multiple domains if the situation spans them
- Focus on the user's actual problem, not just keywords

Return ONLY the JSON, no other text.`)

	return sb.String()
}

// buildRepairPrompt is the stricter re-prompt used after a parse failure.
func buildRepairPrompt(userQuery, badOutput string) string {
	var sb strings.Builder

	sb.WriteString("Your previous output could not be parsed as JSON.\n\n")
	fmt.Fprintf(&sb, "Previous output:\n%s\n\n", badOutput)
	fmt.Fprintf(&sb, "User Query: %q\n\n", userQuery)
	sb.WriteString(`Respond with EXACTLY one JSON object and nothing else. No markdown, no commentary. The object must have these fields:

{"primary_domain": "...", "secondary_domain": "...", "related_domains": [], "confidence": 0.5, "user_friendly_summary": "...", "suggested_keywords": [], "reasoning": "..."}

"confidence" must be a plain number between 0.0 and 1.0. "primary_domain" must be one of: `)
	names := make([]string, 0)
	for _, d := range domain.All() {
		names = append(names, string(d))
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(".")

	return sb.String()
}
