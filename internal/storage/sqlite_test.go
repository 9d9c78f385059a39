package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "devpulse.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedSnapshot(t *testing.T, store *SQLiteStore, commitID, projectID string, parent *string, createdAt time.Time) {
	t.Helper()
	err := store.CreateSnapshot(context.Background(), &models.Snapshot{
		CommitID:       commitID,
		ProjectID:      projectID,
		ParentCommitID: parent,
		DeveloperName:  "dana",
		CodeText:       "package main\n\nfunc main() {}",
		Language:       "go",
		CreatedAt:      createdAt,
	})
	require.NoError(t, err)
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	parent := "root"
	seedSnapshot(t, store, "root", "p1", nil, time.Now().UTC().Add(-time.Hour))
	seedSnapshot(t, store, "head", "p1", &parent, time.Now().UTC())

	got, err := store.GetSnapshotByCommit(ctx, "head")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ProjectID)
	require.NotNil(t, got.ParentCommitID)
	assert.Equal(t, "root", *got.ParentCommitID)

	rootSnap, err := store.GetSnapshotByCommit(ctx, "root")
	require.NoError(t, err)
	assert.Nil(t, rootSnap.ParentCommitID)

	latest, err := store.GetLatestSnapshotByProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "head", latest.CommitID)

	_, err = store.GetSnapshotByCommit(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetLatestSnapshotByProject(ctx, "other-project")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ReviewRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSnapshot(t, store, "c1", "p1", nil, time.Now().UTC())

	start, end := 3, 5
	created, err := store.CreateReview(ctx, &models.ReviewSuggestion{
		CommitID:   "c1",
		LineStart:  &start,
		LineEnd:    &end,
		Suggestion: "use a named constant",
		Severity:   "minor",
	})
	require.NoError(t, err)
	assert.Greater(t, created.ReviewID, int64(0))

	second, err := store.CreateReview(ctx, &models.ReviewSuggestion{
		CommitID:   "c1",
		Suggestion: "add a nil check",
	})
	require.NoError(t, err)
	assert.Greater(t, second.ReviewID, created.ReviewID)

	reviews, err := store.GetReviewsForCommit(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, "use a named constant", reviews[0].Suggestion)
	require.NotNil(t, reviews[0].LineStart)
	assert.Equal(t, 3, *reviews[0].LineStart)
	assert.Nil(t, reviews[1].LineStart)

	empty, err := store.GetReviewsForCommit(ctx, "no-such-commit")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_ClassificationIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedSnapshot(t, store, "c1", "p1", nil, time.Now().UTC())
	review, err := store.CreateReview(ctx, &models.ReviewSuggestion{CommitID: "c1", Suggestion: "x"})
	require.NoError(t, err)

	first, err := store.CreateClassification(ctx, &models.ClassificationOutcome{
		ReviewID:       review.ReviewID,
		Label:          models.LabelAccepted,
		Confidence:     0.9,
		Category:       "Code Quality",
		RecurringIssue: "naming",
		Rationale:      "first writer",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LabelAccepted, first.Label)

	// Second insert for the same review is a no-op; the first row survives
	second, err := store.CreateClassification(ctx, &models.ClassificationOutcome{
		ReviewID:   review.ReviewID,
		Label:      models.LabelRejected,
		Confidence: 0.1,
		Rationale:  "late writer",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ClassificationID, second.ClassificationID)
	assert.Equal(t, models.LabelAccepted, second.Label)
	assert.Equal(t, "first writer", second.Rationale)

	_, err = store.GetClassificationForReview(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ClassificationsJoinAuthorAndDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	snapDate := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedSnapshot(t, store, "c1", "p1", nil, snapDate)
	review, err := store.CreateReview(ctx, &models.ReviewSuggestion{CommitID: "c1", Suggestion: "x"})
	require.NoError(t, err)

	_, err = store.CreateClassification(ctx, &models.ClassificationOutcome{
		ReviewID:       review.ReviewID,
		Label:          models.LabelModified,
		Confidence:     0.8,
		Category:       "Style",
		RecurringIssue: "long lines",
	})
	require.NoError(t, err)

	records, err := store.GetClassificationsWithAuthorAndDate(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "dana", records[0].DeveloperName)
	assert.Equal(t, snapDate, records[0].SnapshotDate.UTC())
	assert.Equal(t, models.LabelModified, records[0].Outcome.Label)
	assert.Equal(t, "long lines", records[0].Outcome.RecurringIssue)
}

func TestSQLiteStore_CompletionInputsUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetCompletionInputs(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.SaveCompletionInputs(ctx, &models.CompletionInputs{
		CommitID:               "c1",
		FRCompletionRate:       0.5,
		NFRCompletionRate:      0.4,
		CompilationSuccessRate: 1.0,
		Rationale:              "v1",
	})
	require.NoError(t, err)

	err = store.SaveCompletionInputs(ctx, &models.CompletionInputs{
		CommitID:               "c1",
		FRCompletionRate:       0.9,
		NFRCompletionRate:      0.8,
		CompilationSuccessRate: 1.0,
		Rationale:              "v2",
	})
	require.NoError(t, err)

	got, err := store.GetCompletionInputs(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, got.FRCompletionRate)
	assert.Equal(t, "v2", got.Rationale)
}

func TestSQLiteStore_RiskAssessmentHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := &models.RiskAssessment{
		AssessmentID: "a1", ProjectID: "p1", CommitID: "c1",
		Score: 70, Level: models.RiskLevelHigh, Recommendation: models.RecommendNoGo,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	newer := &models.RiskAssessment{
		AssessmentID: "a2", ProjectID: "p1", CommitID: "c2",
		Score: 20, Level: models.RiskLevelLow, Recommendation: models.RecommendGo,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateRiskAssessment(ctx, older))
	require.NoError(t, store.CreateRiskAssessment(ctx, newer))

	history, err := store.GetRiskAssessments(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	// Newest first
	assert.Equal(t, "a2", history[0].AssessmentID)
	assert.Equal(t, models.RecommendGo, history[0].Recommendation)
}
