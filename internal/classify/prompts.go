package classify

import (
	"fmt"
	"strings"

	"github.com/devpulse/devpulse-go/internal/models"
)

// ClassifySystemPrompt is the fixed instruction contract for review
// classification. The response must be a single bare JSON object.
const ClassifySystemPrompt = `You are a precise code-review classifier.
Given a review comment and BEFORE/AFTER code snapshots you:
1) classify the review outcome as accepted, modified, or rejected
2) assign a category from the predefined list
3) provide a short recurring_issue description for recurring developer issues (e.g., "missing type hints")

Definitions:
- accepted: the suggestion was fully implemented as written.
- modified: the suggestion was implemented but with some variation, extension, or partial change.
- rejected: the suggestion was ignored, rejected, or missing from the updated code.

Return a JSON object with fields:
- label (one of: accepted, modified, rejected)
- confidence (0-1)
- category (one of the predefined categories)
- recurring_issue (short description)
- rationale (short, 1-2 sentences)

Return ONLY the JSON object. Do NOT include markdown fences or explanations.`

// classifyUserPrompt renders one review plus its before/after excerpts.
func classifyUserPrompt(review *models.ReviewSuggestion, beforeExcerpt, afterExcerpt string, lineStart, lineEnd int) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Predefined categories: %s\n\n", strings.Join(models.ReviewCategories, ", "))
	fmt.Fprintf(&sb, "Review comment:\n\"\"\"%s\"\"\"\n\n", review.Suggestion)
	fmt.Fprintf(&sb, "Parent (BEFORE) code (lines %d-%d and small context):\n\"\"\"%s\"\"\"\n\n", lineStart, lineEnd, beforeExcerpt)
	fmt.Fprintf(&sb, "Child (AFTER) code (same context):\n\"\"\"%s\"\"\"\n", afterExcerpt)

	return sb.String()
}
