package storage

import (
	"context"
	"errors"
	"time"

	"github.com/devpulse/devpulse-go/internal/models"
)

// Common errors
var (
	// ErrNotFound signals a lookup miss. Callers decide whether that is a
	// recoverable condition or a data-integrity violation.
	ErrNotFound = errors.New("not found")
)

// Store defines the persistence interface consumed by the pipeline
type Store interface {
	// Snapshot operations
	CreateSnapshot(ctx context.Context, snap *models.Snapshot) error
	GetSnapshotByCommit(ctx context.Context, commitID string) (*models.Snapshot, error)
	GetLatestSnapshotByProject(ctx context.Context, projectID string) (*models.Snapshot, error)

	// Review operations
	CreateReview(ctx context.Context, review *models.ReviewSuggestion) (*models.ReviewSuggestion, error)
	GetReviewsForCommit(ctx context.Context, commitID string) ([]*models.ReviewSuggestion, error)

	// Classification operations
	// CreateClassification is idempotent: if an outcome already exists for
	// the review it is returned unchanged, never overwritten.
	CreateClassification(ctx context.Context, outcome *models.ClassificationOutcome) (*models.ClassificationOutcome, error)
	GetClassificationForReview(ctx context.Context, reviewID int64) (*models.ClassificationOutcome, error)
	GetClassificationsWithAuthorAndDate(ctx context.Context) ([]*models.ClassifiedReview, error)

	// Completion-rate inputs for risk scoring
	SaveCompletionInputs(ctx context.Context, inputs *models.CompletionInputs) error
	GetCompletionInputs(ctx context.Context, commitID string) (*models.CompletionInputs, error)

	// Risk assessment history (append-only)
	CreateRiskAssessment(ctx context.Context, assessment *models.RiskAssessment) error
	GetRiskAssessments(ctx context.Context, projectID string) ([]*models.RiskAssessment, error)

	// Close connection
	Close() error
}

// classifiedRow is the flat join row scanned by both backends.
type classifiedRow struct {
	ClassificationID int64     `db:"classification_id"`
	ReviewID         int64     `db:"review_id"`
	Label            string    `db:"label"`
	Confidence       float64   `db:"confidence"`
	Category         string    `db:"category"`
	RecurringIssue   string    `db:"recurring_issue"`
	Rationale        string    `db:"rationale"`
	CreatedAt        time.Time `db:"created_at"`
	DeveloperName    string    `db:"developer_name"`
	SnapshotDate     time.Time `db:"snapshot_date"`
}

func (r *classifiedRow) toModel() *models.ClassifiedReview {
	return &models.ClassifiedReview{
		Outcome: models.ClassificationOutcome{
			ClassificationID: r.ClassificationID,
			ReviewID:         r.ReviewID,
			Label:            models.Label(r.Label),
			Confidence:       r.Confidence,
			Category:         r.Category,
			RecurringIssue:   r.RecurringIssue,
			Rationale:        r.Rationale,
			CreatedAt:        r.CreatedAt,
		},
		DeveloperName: r.DeveloperName,
		SnapshotDate:  r.SnapshotDate,
	}
}
