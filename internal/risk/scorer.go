package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	apperrors "github.com/devpulse/devpulse-go/internal/errors"
	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/devpulse/devpulse-go/internal/storage"
	"github.com/google/uuid"
)

// Fixed design weights: functional completion dominates, compilability is a
// weak signal of completion.
const (
	DefaultFRWeight          = 0.5
	DefaultNFRWeight         = 0.4
	DefaultCompilationWeight = 0.1
)

// Band edges. Scores are 0-100 with higher meaning higher risk; both edges
// are inclusive to the middle band, so exactly 33 and exactly 66 are both
// "Conditional".
const (
	DefaultLowThreshold  = 33.0
	DefaultHighThreshold = 66.0
)

// Weights configures the completion-rate mix.
type Weights struct {
	FR          float64
	NFR         float64
	Compilation float64
}

// DefaultWeights returns the fixed design constants.
func DefaultWeights() Weights {
	return Weights{
		FR:          DefaultFRWeight,
		NFR:         DefaultNFRWeight,
		Compilation: DefaultCompilationWeight,
	}
}

// Score computes the weighted risk score from three completion rates, each
// clamped to [0,1]. Result is 0-100, rounded to 2 decimals; higher score
// means higher release risk.
func Score(fr, nfr, csr float64, w Weights) float64 {
	fr = clamp01(fr)
	nfr = clamp01(nfr)
	csr = clamp01(csr)

	risk := 100 * (w.FR*(1-fr) + w.NFR*(1-nfr) + w.Compilation*(1-csr))
	return math.Round(risk*100) / 100
}

// Band maps a score to the discrete release recommendation.
func Band(score, low, high float64) (models.Recommendation, models.RiskLevel) {
	switch {
	case score < low:
		return models.RecommendGo, models.RiskLevelLow
	case score <= high:
		return models.RecommendConditional, models.RiskLevelMedium
	default:
		return models.RecommendNoGo, models.RiskLevelHigh
	}
}

// Scorer produces risk assessments for a project's latest snapshot.
type Scorer struct {
	store     storage.Store
	estimator *Estimator // optional; nil means stored inputs are required
	weights   Weights
	low       float64
	high      float64
	logger    *slog.Logger
}

// NewScorer wires a scorer to a store. estimator may be nil, in which case
// missing completion inputs are a hard error rather than estimated.
func NewScorer(store storage.Store, estimator *Estimator, weights Weights, low, high float64, logger *slog.Logger) *Scorer {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if low <= 0 {
		low = DefaultLowThreshold
	}
	if high <= 0 {
		high = DefaultHighThreshold
	}
	return &Scorer{
		store:     store,
		estimator: estimator,
		weights:   weights,
		low:       low,
		high:      high,
		logger:    logger.With("component", "risk"),
	}
}

// Assess scores the latest snapshot of a project. With persist false it is
// compute-only: nothing is written, which keeps the scorer testable without
// a populated assessment history.
func (s *Scorer) Assess(ctx context.Context, projectID string, persist bool) (*models.RiskAssessment, error) {
	snap, err := s.store.GetLatestSnapshotByProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NewIntegrity(fmt.Sprintf("no snapshot found for project %s", projectID)).
				WithContext("project_id", projectID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "load latest snapshot")
	}

	inputs, err := s.completionInputs(ctx, snap)
	if err != nil {
		return nil, err
	}

	score := Score(inputs.FRCompletionRate, inputs.NFRCompletionRate, inputs.CompilationSuccessRate, s.weights)
	recommendation, level := Band(score, s.low, s.high)

	assessment := &models.RiskAssessment{
		AssessmentID:           uuid.NewString(),
		ProjectID:              projectID,
		CommitID:               snap.CommitID,
		FRCompletionRate:       clamp01(inputs.FRCompletionRate),
		NFRCompletionRate:      clamp01(inputs.NFRCompletionRate),
		CompilationSuccessRate: clamp01(inputs.CompilationSuccessRate),
		Score:                  score,
		Level:                  level,
		Recommendation:         recommendation,
		Rationale:              inputs.Rationale,
	}

	s.logger.Info("risk assessment computed",
		"project_id", projectID,
		"commit_id", snap.CommitID,
		"score", score,
		"recommendation", recommendation,
	)

	if persist {
		if err := s.store.CreateRiskAssessment(ctx, assessment); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "persist risk assessment")
		}
	}

	return assessment, nil
}

// completionInputs loads stored inputs, estimating and storing them when an
// estimator is configured. Missing inputs without an estimator abort the
// assessment; the scorer never substitutes zero silently.
func (s *Scorer) completionInputs(ctx context.Context, snap *models.Snapshot) (*models.CompletionInputs, error) {
	inputs, err := s.store.GetCompletionInputs(ctx, snap.CommitID)
	if err == nil {
		return inputs, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "load completion inputs")
	}

	if s.estimator == nil {
		return nil, apperrors.NewIntegrity(fmt.Sprintf("no completion inputs found for commit %s", snap.CommitID)).
			WithContext("commit_id", snap.CommitID)
	}

	inputs, err = s.estimator.Estimate(ctx, snap)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveCompletionInputs(ctx, inputs); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeStorage, apperrors.SeverityHigh, "save completion inputs")
	}
	return inputs, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
