package risk

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	apperrors "github.com/devpulse/devpulse-go/internal/errors"
	"github.com/devpulse/devpulse-go/internal/models"
	"github.com/devpulse/devpulse-go/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	w := DefaultWeights()

	tests := []struct {
		name          string
		fr, nfr, csr  float64
		want          float64
	}{
		{"everything complete", 1.0, 1.0, 1.0, 0},
		{"nothing complete", 0.0, 0.0, 0.0, 100},
		{"mixed", 0.8, 0.6, 1.0, 26},
		{"fr only", 0.0, 1.0, 1.0, 50},
		{"clamped above one", 1.5, 1.0, 1.0, 0},
		{"clamped below zero", -0.5, 1.0, 1.0, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.fr, tt.nfr, tt.csr, w)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		score     float64
		wantRec   models.Recommendation
		wantLevel models.RiskLevel
	}{
		{0, models.RecommendGo, models.RiskLevelLow},
		{32.99, models.RecommendGo, models.RiskLevelLow},
		{33, models.RecommendConditional, models.RiskLevelMedium}, // lower edge is Conditional
		{50, models.RecommendConditional, models.RiskLevelMedium},
		{66, models.RecommendConditional, models.RiskLevelMedium}, // upper edge too
		{66.01, models.RecommendNoGo, models.RiskLevelHigh},
		{100, models.RecommendNoGo, models.RiskLevelHigh},
	}

	for _, tt := range tests {
		rec, level := Band(tt.score, DefaultLowThreshold, DefaultHighThreshold)
		assert.Equal(t, tt.wantRec, rec, "score %v", tt.score)
		assert.Equal(t, tt.wantLevel, level, "score %v", tt.score)
	}
}

// riskStore is an in-memory Store for scorer wiring tests.
type riskStore struct {
	storage.Store
	latest      *models.Snapshot
	inputs      map[string]*models.CompletionInputs
	assessments []*models.RiskAssessment
}

func newRiskStore(latest *models.Snapshot) *riskStore {
	return &riskStore{
		latest: latest,
		inputs: make(map[string]*models.CompletionInputs),
	}
}

func (s *riskStore) GetLatestSnapshotByProject(ctx context.Context, projectID string) (*models.Snapshot, error) {
	if s.latest == nil || s.latest.ProjectID != projectID {
		return nil, storage.ErrNotFound
	}
	return s.latest, nil
}

func (s *riskStore) GetCompletionInputs(ctx context.Context, commitID string) (*models.CompletionInputs, error) {
	in, ok := s.inputs[commitID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return in, nil
}

func (s *riskStore) SaveCompletionInputs(ctx context.Context, in *models.CompletionInputs) error {
	s.inputs[in.CommitID] = in
	return nil
}

func (s *riskStore) CreateRiskAssessment(ctx context.Context, a *models.RiskAssessment) error {
	s.assessments = append(s.assessments, a)
	return nil
}

type stubOracle struct {
	responses []string
	err       error
	calls     int
}

func (s *stubOracle) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func snapshot() *models.Snapshot {
	return &models.Snapshot{
		CommitID:      "head",
		ProjectID:     "p1",
		DeveloperName: "dana",
		CodeText:      "package main",
		Language:      "go",
	}
}

func newTestScorer(store storage.Store, est *Estimator) *Scorer {
	return NewScorer(store, est, DefaultWeights(), DefaultLowThreshold, DefaultHighThreshold, slog.Default())
}

func TestAssess_StoredInputs(t *testing.T) {
	store := newRiskStore(snapshot())
	store.inputs["head"] = &models.CompletionInputs{
		CommitID:               "head",
		FRCompletionRate:       0.8,
		NFRCompletionRate:      0.6,
		CompilationSuccessRate: 1.0,
		Rationale:              "stored",
	}

	out, err := newTestScorer(store, nil).Assess(context.Background(), "p1", true)
	require.NoError(t, err)

	assert.Equal(t, 26.0, out.Score)
	assert.Equal(t, models.RecommendGo, out.Recommendation)
	assert.Equal(t, models.RiskLevelLow, out.Level)
	assert.Equal(t, "head", out.CommitID)
	assert.NotEmpty(t, out.AssessmentID)
	require.Len(t, store.assessments, 1)
}

func TestAssess_ComputeOnlySkipsPersist(t *testing.T) {
	store := newRiskStore(snapshot())
	store.inputs["head"] = &models.CompletionInputs{CommitID: "head", FRCompletionRate: 1, NFRCompletionRate: 1, CompilationSuccessRate: 1}

	out, err := newTestScorer(store, nil).Assess(context.Background(), "p1", false)
	require.NoError(t, err)

	assert.Equal(t, 0.0, out.Score)
	assert.Empty(t, store.assessments)
}

func TestAssess_NoSnapshot(t *testing.T) {
	store := newRiskStore(nil)

	_, err := newTestScorer(store, nil).Assess(context.Background(), "p1", false)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeIntegrity, appErr.Type)
}

func TestAssess_MissingInputsWithoutEstimator(t *testing.T) {
	store := newRiskStore(snapshot())

	_, err := newTestScorer(store, nil).Assess(context.Background(), "p1", false)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeIntegrity, appErr.Type)
	assert.Equal(t, "head", appErr.Context["commit_id"])
}

func TestAssess_EstimatorFillsAndStoresInputs(t *testing.T) {
	store := newRiskStore(snapshot())
	oracle := &stubOracle{responses: []string{
		`{"compilation_success_rate":1.0,"confidence":0.9,"rationale":"parses cleanly"}`,
		`{"fr_completion_rate":0.5,"nfr_completion_rate":0.5,"confidence":0.8,"rationale":"half done"}`,
	}}
	est, err := NewEstimator(oracle, Requirements{Functional: []string{"users can log in"}}, slog.Default())
	require.NoError(t, err)

	out, err := newTestScorer(store, est).Assess(context.Background(), "p1", true)
	require.NoError(t, err)

	// 0.5*0.5 + 0.4*0.5 + 0.1*0 = 45
	assert.Equal(t, 45.0, out.Score)
	assert.Equal(t, models.RecommendConditional, out.Recommendation)
	assert.Equal(t, 2, oracle.calls)
	assert.Contains(t, out.Rationale, "parses cleanly")
	assert.Contains(t, out.Rationale, "half done")

	// Estimated inputs are persisted for later assessments
	saved, ok := store.inputs["head"]
	require.True(t, ok)
	assert.Equal(t, 0.5, saved.FRCompletionRate)

	// Second run reuses stored inputs without calling the oracle again
	_, err = newTestScorer(store, est).Assess(context.Background(), "p1", false)
	require.NoError(t, err)
	assert.Equal(t, 2, oracle.calls)
}

func TestAssess_EstimatorTransportErrorPropagates(t *testing.T) {
	store := newRiskStore(snapshot())
	oracle := &stubOracle{err: errors.New("timeout")}
	est, err := NewEstimator(oracle, Requirements{Functional: []string{"f1"}}, slog.Default())
	require.NoError(t, err)

	_, err = newTestScorer(store, est).Assess(context.Background(), "p1", false)
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeOracle, appErr.Type)
	assert.Empty(t, store.inputs, "nothing stored on transport failure")
}

func TestNewEstimator_RequiresRequirements(t *testing.T) {
	_, err := NewEstimator(&stubOracle{}, Requirements{}, slog.Default())
	require.Error(t, err)

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func TestEstimate_UnparseableResponsesDegradeToZero(t *testing.T) {
	oracle := &stubOracle{responses: []string{"nonsense", "more nonsense"}}
	est, err := NewEstimator(oracle, Requirements{NonFunctional: []string{"n1"}}, slog.Default())
	require.NoError(t, err)

	inputs, err := est.Estimate(context.Background(), snapshot())
	require.NoError(t, err)

	assert.Equal(t, 0.0, inputs.FRCompletionRate)
	assert.Equal(t, 0.0, inputs.NFRCompletionRate)
	assert.Equal(t, 0.0, inputs.CompilationSuccessRate)
	assert.Contains(t, inputs.Rationale, "Parsing error")
}
