package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	apperrors "github.com/devpulse/devpulse-go/internal/errors"
	"github.com/devpulse/devpulse-go/internal/llm"
	"github.com/devpulse/devpulse-go/internal/models"
)

// Prompt size caps keep the snapshot excerpt inside the oracle's context.
const (
	requirementsCodeLimit = 8000
	compilationCodeLimit  = 6000
)

// Requirements lists the project's functional and non-functional
// requirements the completion rates are judged against.
type Requirements struct {
	Functional    []string `json:"functional" yaml:"functional"`
	NonFunctional []string `json:"non_functional" yaml:"non_functional"`
}

// Estimator derives the three completion-rate inputs from the latest
// snapshot via two oracle calls: one for requirement coverage, one for
// compilation likelihood.
type Estimator struct {
	oracle llm.Oracle
	reqs   Requirements
	logger *slog.Logger
}

// NewEstimator creates an estimator. At least one requirement list must be
// non-empty; an assessment without requirements has nothing to judge.
func NewEstimator(oracle llm.Oracle, reqs Requirements, logger *slog.Logger) (*Estimator, error) {
	if len(reqs.Functional) == 0 && len(reqs.NonFunctional) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeValidation, apperrors.SeverityHigh,
			"no functional or non-functional requirements provided")
	}
	return &Estimator{
		oracle: oracle,
		reqs:   reqs,
		logger: logger.With("component", "risk-estimator"),
	}, nil
}

type requirementsResponse struct {
	FRCompletionRate  float64 `json:"fr_completion_rate"`
	NFRCompletionRate float64 `json:"nfr_completion_rate"`
	Confidence        float64 `json:"confidence"`
	Rationale         string  `json:"rationale"`
}

type compilationResponse struct {
	CompilationSuccessRate float64 `json:"compilation_success_rate"`
	Confidence             float64 `json:"confidence"`
	Rationale              string  `json:"rationale"`
}

// Estimate runs both oracle calls against the snapshot. Transport failures
// propagate; unparseable responses degrade to 0.0 rates with the diagnostic
// recorded in the rationale.
func (e *Estimator) Estimate(ctx context.Context, snap *models.Snapshot) (*models.CompletionInputs, error) {
	compRaw, err := e.oracle.CompleteJSON(ctx, compilationSystemPrompt,
		compilationUserPrompt(snap.CodeText, snap.Language))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeOracle, apperrors.SeverityHigh, "compilation estimate")
	}

	var comp compilationResponse
	compRationale := ""
	if err := llm.ParseLenient(compRaw, &comp); err != nil {
		e.logger.Warn("compilation estimate unparseable", "error", err)
		comp = compilationResponse{}
		compRationale = fmt.Sprintf("Parsing error: %v", err)
	} else {
		compRationale = comp.Rationale
	}

	reqRaw, err := e.oracle.CompleteJSON(ctx, requirementsSystemPrompt,
		requirementsUserPrompt(snap.CodeText, e.reqs))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeOracle, apperrors.SeverityHigh, "requirements estimate")
	}

	var req requirementsResponse
	reqRationale := ""
	if err := llm.ParseLenient(reqRaw, &req); err != nil {
		e.logger.Warn("requirements estimate unparseable", "error", err)
		req = requirementsResponse{}
		reqRationale = fmt.Sprintf("Parsing error: %v", err)
	} else {
		reqRationale = req.Rationale
	}

	return &models.CompletionInputs{
		CommitID:               snap.CommitID,
		FRCompletionRate:       clamp01(req.FRCompletionRate),
		NFRCompletionRate:      clamp01(req.NFRCompletionRate),
		CompilationSuccessRate: clamp01(comp.CompilationSuccessRate),
		Rationale:              fmt.Sprintf("Compilation: %s\nFR/NFR: %s", compRationale, reqRationale),
	}, nil
}

const requirementsSystemPrompt = `You are a software quality analyst.
Given a source code snapshot and project requirements, estimate completion
percentages for Functional and Non-Functional Requirements.

Return a JSON object with:
- fr_completion_rate (0-1)
- nfr_completion_rate (0-1)
- confidence (0-1)
- rationale (brief explanation)

Return ONLY the JSON object. Do not include code fences or explanations.`

func requirementsUserPrompt(code string, reqs Requirements) string {
	frJSON, _ := json.MarshalIndent(reqs.Functional, "", "  ")
	nfrJSON, _ := json.MarshalIndent(reqs.NonFunctional, "", "  ")

	return fmt.Sprintf("Functional Requirements (FRs):\n%s\n\nNon-Functional Requirements (NFRs):\n%s\n\nCode Snapshot:\n\"\"\"%s\"\"\"",
		frJSON, nfrJSON, truncateCode(code, requirementsCodeLimit))
}

const compilationSystemPrompt = `You are a compiler simulation assistant.
Review the given code and estimate how likely it is to compile successfully
without syntax or structural errors.

Return a JSON object with:
- compilation_success_rate (0-1)
- confidence (0-1)
- rationale (brief explanation)

Notes:
- Focus on syntax correctness, missing imports, unclosed structures, or language misuse.
- Do not actually execute the code.
- Return ONLY the JSON object. No extra text or explanations.`

func compilationUserPrompt(code, language string) string {
	return fmt.Sprintf("Language: %s\n\nCode:\n\"\"\"%s\"\"\"", language, truncateCode(code, compilationCodeLimit))
}

func truncateCode(code string, limit int) string {
	if len(code) <= limit {
		return code
	}
	return code[:limit]
}
