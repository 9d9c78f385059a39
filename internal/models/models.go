package models

import (
	"time"
)

// Snapshot is the immutable source text of one commit within a project.
// Parent pointers form a singly linked ancestry chain; the root has none.
type Snapshot struct {
	CommitID       string    `json:"commit_id" db:"commit_id"`
	ProjectID      string    `json:"project_id" db:"project_id"`
	ParentCommitID *string   `json:"parent_commit_id,omitempty" db:"parent_commit_id"`
	DeveloperName  string    `json:"developer_name" db:"developer_name"`
	CodeText       string    `json:"code_text" db:"code_text"`
	Language       string    `json:"language" db:"language"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ReviewSuggestion is one reviewer comment attached to the snapshot it was
// raised against. A nil line range means the suggestion applies broadly.
type ReviewSuggestion struct {
	ReviewID   int64     `json:"review_id" db:"review_id"`
	CommitID   string    `json:"commit_id" db:"commit_id"`
	LineStart  *int      `json:"line_start,omitempty" db:"line_start"`
	LineEnd    *int      `json:"line_end,omitempty" db:"line_end"`
	Suggestion string    `json:"suggestion" db:"suggestion"`
	Severity   string    `json:"severity" db:"severity"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Label is the classification verdict for a review suggestion.
type Label string

const (
	LabelAccepted Label = "accepted"
	LabelModified Label = "modified"
	LabelRejected Label = "rejected"
	LabelUnknown  Label = "unknown"
)

// ValidLabel reports whether l is a label the oracle is allowed to return.
func ValidLabel(l Label) bool {
	switch l {
	case LabelAccepted, LabelModified, LabelRejected:
		return true
	}
	return false
}

// Handled reports whether the label counts as the suggestion being addressed.
func (l Label) Handled() bool {
	return l == LabelAccepted || l == LabelModified
}

// ReviewCategories is the fixed category set offered to the oracle.
// Anything outside it is coerced to CategoryOther before storage.
var ReviewCategories = []string{
	"Code Quality",
	"Documentation",
	"Debugging",
	"Performance",
	"Security",
	"Style",
	CategoryOther,
}

const (
	// CategoryOther is the coercion target for out-of-enum categories and
	// the sentinel for an absent recurring issue.
	CategoryOther = "Other"
)

// ValidCategory reports whether c is in the fixed category enum.
func ValidCategory(c string) bool {
	for _, rc := range ReviewCategories {
		if c == rc {
			return true
		}
	}
	return false
}

// ClassificationOutcome records whether a later commit addressed a review
// suggestion. At most one outcome exists per review.
type ClassificationOutcome struct {
	ClassificationID int64     `json:"classification_id" db:"classification_id"`
	ReviewID         int64     `json:"review_id" db:"review_id"`
	Label            Label     `json:"label" db:"label"`
	Confidence       float64   `json:"confidence" db:"confidence"`
	Category         string    `json:"category" db:"category"`
	RecurringIssue   string    `json:"recurring_issue" db:"recurring_issue"`
	Rationale        string    `json:"rationale" db:"rationale"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// ChainOutcome tags a classification with its position in the commit chain.
type ChainOutcome struct {
	ReviewID       int64                  `json:"review_id"`
	ParentCommitID string                 `json:"parent_commit_id"`
	ChildCommitID  string                 `json:"child_commit_id"`
	Outcome        *ClassificationOutcome `json:"outcome"`
}

// CompletionInputs holds the three completion-rate signals consumed by the
// risk scorer, each in [0,1].
type CompletionInputs struct {
	CommitID               string  `json:"commit_id" db:"commit_id"`
	FRCompletionRate       float64 `json:"fr_completion_rate" db:"fr_completion_rate"`
	NFRCompletionRate      float64 `json:"nfr_completion_rate" db:"nfr_completion_rate"`
	CompilationSuccessRate float64 `json:"compilation_success_rate" db:"compilation_success_rate"`
	Rationale              string  `json:"rationale" db:"rationale"`
}

// Recommendation is the discrete release decision derived from a risk score.
type Recommendation string

const (
	RecommendGo          Recommendation = "Go"
	RecommendConditional Recommendation = "Conditional"
	RecommendNoGo        Recommendation = "No-Go"
)

// RiskLevel mirrors the recommendation as a severity band.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "Low Risk"
	RiskLevelMedium RiskLevel = "Medium Risk"
	RiskLevelHigh   RiskLevel = "High Risk"
)

// RiskAssessment is one scored evaluation of a project's release readiness.
// History is append-only per project.
type RiskAssessment struct {
	AssessmentID           string         `json:"assessment_id" db:"assessment_id"`
	ProjectID              string         `json:"project_id" db:"project_id"`
	CommitID               string         `json:"commit_id" db:"commit_id"`
	FRCompletionRate       float64        `json:"fr_completion_rate" db:"fr_completion_rate"`
	NFRCompletionRate      float64        `json:"nfr_completion_rate" db:"nfr_completion_rate"`
	CompilationSuccessRate float64        `json:"compilation_success_rate" db:"compilation_success_rate"`
	Score                  float64        `json:"score" db:"score"`
	Level                  RiskLevel      `json:"level" db:"level"`
	Recommendation         Recommendation `json:"recommendation" db:"recommendation"`
	Rationale              string         `json:"rationale" db:"rationale"`
	CreatedAt              time.Time      `json:"created_at" db:"created_at"`
}

// ClassifiedReview joins an outcome with the author and date of the snapshot
// that raised the review; the metrics aggregator folds over these.
type ClassifiedReview struct {
	Outcome       ClassificationOutcome `json:"outcome"`
	DeveloperName string                `json:"developer_name" db:"developer_name"`
	SnapshotDate  time.Time             `json:"snapshot_date" db:"snapshot_date"`
}
