package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/devpulse/devpulse-go/internal/errors"
	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/devpulse/devpulse-go/internal/storage"
)

// ChainClassifier walks a snapshot ancestry chain backward from a merged
// commit and produces one classification outcome for every review raised on
// an ancestor, comparing each ancestor against its child snapshot.
type ChainClassifier struct {
	store   storage.Store
	adapter *Adapter
	logger  *slog.Logger
}

// NewChainClassifier wires a chain classifier to a store and an adapter.
func NewChainClassifier(store storage.Store, adapter *Adapter, logger *slog.Logger) *ChainClassifier {
	return &ChainClassifier{
		store:   store,
		adapter: adapter,
		logger:  logger.With("component", "chain"),
	}
}

// ClassifyChain classifies every outstanding review in the ancestor chain of
// mergedCommitID, strictly child-to-root. A missing target or parent snapshot
// is a data-integrity violation and aborts the walk; individual oracle
// failures do not.
func (c *ChainClassifier) ClassifyChain(ctx context.Context, mergedCommitID string) ([]*models.ChainOutcome, error) {
	current, err := c.store.GetSnapshotByCommit(ctx, mergedCommitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewIntegrity(fmt.Sprintf("commit %s not found in snapshots", mergedCommitID)).
				WithContext("commit_id", mergedCommitID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "load target snapshot")
	}

	var outcomes []*models.ChainOutcome

	// Traverse the chain backwards until root (no parent)
	for current.ParentCommitID != nil {
		parentID := *current.ParentCommitID

		parent, err := c.store.GetSnapshotByCommit(ctx, parentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Misrecorded ancestry is surfaced, never silently skipped
				return nil, apperrors.NewIntegrity(fmt.Sprintf("parent commit %s not found in snapshots", parentID)).
					WithContext("parent_commit_id", parentID).
					WithContext("child_commit_id", current.CommitID)
			}
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "load parent snapshot")
		}

		reviews, err := c.store.GetReviewsForCommit(ctx, parent.CommitID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "load reviews for commit")
		}

		if len(reviews) == 0 {
			c.logger.Debug("no reviews recorded for parent commit", "commit_id", parent.CommitID)
			current = parent
			continue
		}

		for _, review := range reviews {
			outcome, err := c.classifyReview(ctx, review, parent, current)
			if err != nil {
				return nil, err
			}
			outcomes = append(outcomes, &models.ChainOutcome{
				ReviewID:       review.ReviewID,
				ParentCommitID: parent.CommitID,
				ChildCommitID:  current.CommitID,
				Outcome:        outcome,
			})
		}

		current = parent
	}

	return outcomes, nil
}

// classifyReview classifies one review, skipping the oracle when an outcome
// already exists. The store's idempotent insert remains the correctness
// backstop under concurrent walkers.
func (c *ChainClassifier) classifyReview(ctx context.Context, review *models.ReviewSuggestion, parent, child *models.Snapshot) (*models.ClassificationOutcome, error) {
	existing, err := c.store.GetClassificationForReview(ctx, review.ReviewID)
	if err == nil {
		c.logger.Debug("review already classified", "review_id", review.ReviewID, "label", existing.Label)
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "check existing classification")
	}

	outcome := c.adapter.Classify(ctx, review, parent.CodeText, child.CodeText)
	c.logger.Info("classified review",
		"review_id", review.ReviewID,
		"label", outcome.Label,
		"confidence", outcome.Confidence,
	)

	stored, err := c.store.CreateClassification(ctx, outcome)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "persist classification")
	}
	return stored, nil
}
