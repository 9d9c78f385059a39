package classify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOracle returns scripted responses in order, then repeats the last one.
type fakeOracle struct {
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (f *fakeOracle) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func testLogger() *slog.Logger {
	return slog.Default()
}

func intPtr(v int) *int { return &v }

func review(start, end *int) *models.ReviewSuggestion {
	return &models.ReviewSuggestion{
		ReviewID:   7,
		CommitID:   "c1",
		LineStart:  start,
		LineEnd:    end,
		Suggestion: "add error handling",
		Severity:   "major",
	}
}

func TestAdapter_Classify_ValidResponse(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		`{"label":"accepted","confidence":0.92,"category":"Code Quality","recurring_issue":"missing error handling","rationale":"handled"}`,
	}}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	out := a.Classify(context.Background(), review(intPtr(3), intPtr(4)), "a\nb\nc\nd\ne\nf", "a\nb\nC\nD\ne\nf")

	require.NotNil(t, out)
	assert.Equal(t, models.LabelAccepted, out.Label)
	assert.Equal(t, 0.92, out.Confidence)
	assert.Equal(t, "Code Quality", out.Category)
	assert.Equal(t, "missing error handling", out.RecurringIssue)
	assert.Equal(t, int64(7), out.ReviewID)
}

func TestAdapter_Classify_LowConfidenceDefaultsLabel(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		`{"label":"accepted","confidence":0.45,"category":"Style","recurring_issue":"long lines","rationale":"maybe"}`,
	}}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	out := a.Classify(context.Background(), review(nil, nil), "before", "after")

	// Label is defaulted but the oracle's numeric confidence is preserved
	assert.Equal(t, models.LabelRejected, out.Label)
	assert.Equal(t, 0.45, out.Confidence)
	assert.Equal(t, "Style", out.Category)
	assert.Equal(t, "long lines", out.RecurringIssue)
	assert.Contains(t, out.Rationale, "queued for manual verification")
}

func TestAdapter_Classify_InvalidLabelCoerced(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		`{"label":"partially_done","confidence":0.9,"category":"Security","recurring_issue":"sql injection","rationale":"x"}`,
	}}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	out := a.Classify(context.Background(), review(nil, nil), "before", "after")

	assert.Equal(t, models.LabelRejected, out.Label)
	assert.Equal(t, "Security", out.Category)
}

func TestAdapter_Classify_InvalidCategoryCoerced(t *testing.T) {
	oracle := &fakeOracle{responses: []string{
		`{"label":"modified","confidence":0.8,"category":"Astrology","recurring_issue":"","rationale":"x"}`,
	}}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	out := a.Classify(context.Background(), review(nil, nil), "before", "after")

	assert.Equal(t, models.LabelModified, out.Label)
	assert.Equal(t, models.CategoryOther, out.Category)
	assert.Equal(t, models.CategoryOther, out.RecurringIssue)
}

func TestAdapter_Classify_ParseFailure(t *testing.T) {
	oracle := &fakeOracle{responses: []string{"this is not json"}}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	out := a.Classify(context.Background(), review(nil, nil), "before", "after")

	assert.Equal(t, models.LabelRejected, out.Label)
	assert.Equal(t, 0.0, out.Confidence)
	assert.Equal(t, models.CategoryOther, out.Category)
	assert.Contains(t, out.Rationale, "Failed to parse oracle response")
}

func TestAdapter_Classify_TransportFailure(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("connection refused")}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	out := a.Classify(context.Background(), review(nil, nil), "before", "after")

	assert.Equal(t, models.LabelUnknown, out.Label)
	assert.Equal(t, 0.0, out.Confidence)
	assert.Contains(t, out.Rationale, "connection refused")
	assert.Contains(t, out.Rationale, "queued for manual verification")
}

func TestAdapter_Classify_ExcerptBoundsPrompt(t *testing.T) {
	before := "l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10"
	oracle := &fakeOracle{responses: []string{
		`{"label":"accepted","confidence":0.9,"category":"Style","recurring_issue":"x","rationale":"y"}`,
	}}
	a := NewAdapter(oracle, 0.6, 2, testLogger())

	a.Classify(context.Background(), review(intPtr(5), intPtr(6)), before, before)

	require.Len(t, oracle.prompts, 1)
	prompt := oracle.prompts[0]
	// Lines 3-8 are in the excerpt (range 5-6 plus 2 lines padding each side)
	assert.Contains(t, prompt, "l3")
	assert.Contains(t, prompt, "l8")
	assert.NotContains(t, prompt, "l2\n")
	assert.NotContains(t, prompt, "l9")
}

func TestBuildExcerptFor(t *testing.T) {
	code := "a\nb\nc\nd\ne"

	tests := []struct {
		name       string
		start, end int
		want       string
	}{
		{"middle range", 3, 3, "a\nb\nc\nd\ne"},
		{"clamped low", 1, 1, "a\nb\nc"},
		{"clamped high", 5, 5, "c\nd\ne"},
		{"beyond file", 10, 12, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, _ := buildExcerptFor(code, tt.start, tt.end, 2)
			if got != tt.want {
				t.Errorf("buildExcerptFor(%d,%d) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}
