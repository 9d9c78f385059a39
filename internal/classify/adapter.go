package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/devpulse/devpulse-go/internal/llm"
	"github.com/devpulse/devpulse-go/internal/models"
)

// DefaultConfidenceFloor is the confidence below which a classification is
// forced to the default label and routed to manual verification.
const DefaultConfidenceFloor = 0.6

// DefaultContextPadding is the number of context lines kept on each side of
// a review's line range when building oracle excerpts.
const DefaultContextPadding = 2

const truncNote = 200 // how much raw response to quote in a diagnostic

// Adapter builds classification requests, invokes the oracle, and normalizes
// responses into valid outcomes. It is stateless and never writes to storage.
type Adapter struct {
	oracle          llm.Oracle
	confidenceFloor float64
	contextPadding  int
	logger          *slog.Logger
}

// NewAdapter creates an adapter around an injected oracle.
func NewAdapter(oracle llm.Oracle, confidenceFloor float64, contextPadding int, logger *slog.Logger) *Adapter {
	if confidenceFloor <= 0 {
		confidenceFloor = DefaultConfidenceFloor
	}
	if contextPadding <= 0 {
		contextPadding = DefaultContextPadding
	}
	return &Adapter{
		oracle:          oracle,
		confidenceFloor: confidenceFloor,
		contextPadding:  contextPadding,
		logger:          logger.With("component", "classify"),
	}
}

// oracleResponse is the expected response shape. Fields stay loose here;
// normalization below enforces the enums.
type oracleResponse struct {
	Label          string  `json:"label"`
	Confidence     float64 `json:"confidence"`
	Category       string  `json:"category"`
	RecurringIssue string  `json:"recurring_issue"`
	Rationale      string  `json:"rationale"`
}

// Classify compares a review's snapshot (before) against its child snapshot
// (after) and returns a normalized outcome. It never returns an error:
// transport and parse failures degrade to a default outcome so a single
// oracle hiccup cannot abort a chain walk.
func (a *Adapter) Classify(ctx context.Context, review *models.ReviewSuggestion, beforeCode, afterCode string) *models.ClassificationOutcome {
	beforeExcerpt, start, end := buildExcerpt(beforeCode, afterCode, review, a.contextPadding)
	afterExcerpt, _, _ := buildExcerptFor(afterCode, start, end, a.contextPadding)

	userPrompt := classifyUserPrompt(review, beforeExcerpt, afterExcerpt, start, end)

	raw, err := a.oracle.CompleteJSON(ctx, ClassifySystemPrompt, userPrompt)
	if err != nil {
		a.logger.Warn("oracle call failed", "review_id", review.ReviewID, "error", err)
		return &models.ClassificationOutcome{
			ReviewID:       review.ReviewID,
			Label:          models.LabelUnknown,
			Confidence:     0.0,
			Category:       models.CategoryOther,
			RecurringIssue: models.CategoryOther,
			Rationale:      fmt.Sprintf("Error, queued for manual verification: %v", err),
		}
	}

	return a.normalize(review.ReviewID, raw)
}

// normalize applies the validation pipeline, in order: parse, confidence
// floor, label enum, category enum, recurring-issue default.
func (a *Adapter) normalize(reviewID int64, raw string) *models.ClassificationOutcome {
	var resp oracleResponse
	if err := llm.ParseLenient(raw, &resp); err != nil {
		return &models.ClassificationOutcome{
			ReviewID:       reviewID,
			Label:          models.LabelRejected,
			Confidence:     0.0,
			Category:       models.CategoryOther,
			RecurringIssue: models.CategoryOther,
			Rationale:      fmt.Sprintf("Failed to parse oracle response: %s | error=%v", truncate(raw, truncNote), err),
		}
	}

	label := models.Label(strings.ToLower(strings.TrimSpace(resp.Label)))
	category := strings.TrimSpace(resp.Category)
	issue := strings.TrimSpace(resp.RecurringIssue)

	if category == "" || !models.ValidCategory(category) {
		category = models.CategoryOther
	}
	if issue == "" {
		issue = models.CategoryOther
	}

	if resp.Confidence < a.confidenceFloor {
		// Keep the oracle's numeric confidence; only the label is defaulted
		return &models.ClassificationOutcome{
			ReviewID:       reviewID,
			Label:          models.LabelRejected,
			Confidence:     resp.Confidence,
			Category:       category,
			RecurringIssue: issue,
			Rationale:      fmt.Sprintf("Low confidence (%.2f), queued for manual verification. Rationale: %s", resp.Confidence, resp.Rationale),
		}
	}

	if !models.ValidLabel(label) {
		label = models.LabelRejected
	}

	return &models.ClassificationOutcome{
		ReviewID:       reviewID,
		Label:          label,
		Confidence:     resp.Confidence,
		Category:       category,
		RecurringIssue: issue,
		Rationale:      resp.Rationale,
	}
}

// buildExcerpt resolves the review's line range (defaulting an absent range
// to the whole file) and returns the before-side excerpt plus the resolved
// range, which the after side reuses.
func buildExcerpt(beforeCode, afterCode string, review *models.ReviewSuggestion, padding int) (string, int, int) {
	beforeLines := strings.Split(beforeCode, "\n")
	afterLines := strings.Split(afterCode, "\n")
	total := len(beforeLines)
	if len(afterLines) > total {
		total = len(afterLines)
	}

	start := 1
	if review.LineStart != nil {
		start = *review.LineStart
	}
	end := total
	if review.LineEnd != nil {
		end = *review.LineEnd
	}

	excerpt, _, _ := buildExcerptFor(beforeCode, start, end, padding)
	return excerpt, start, end
}

// buildExcerptFor slices lines [start-padding, end+padding] out of code,
// 1-based and clamped to the file.
func buildExcerptFor(code string, start, end, padding int) (string, int, int) {
	lines := strings.Split(code, "\n")

	lo := start - padding
	if lo < 1 {
		lo = 1
	}
	hi := end + padding
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo > len(lines) {
		return "", start, end
	}

	return strings.Join(lines[lo-1:hi], "\n"), start, end
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
