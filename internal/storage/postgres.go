package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devpulse/devpulse-go/internal/models"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements storage using PostgreSQL
type PostgresStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

// NewPostgresStore creates a new PostgreSQL storage
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{
		db:     db,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS code_snapshots (
		commit_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		parent_commit_id TEXT,
		developer_name TEXT NOT NULL,
		code_text TEXT NOT NULL,
		language TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS code_review_suggestions (
		review_id BIGSERIAL PRIMARY KEY,
		commit_id TEXT NOT NULL REFERENCES code_snapshots(commit_id),
		line_start INTEGER,
		line_end INTEGER,
		suggestion TEXT NOT NULL,
		severity TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS review_classifications (
		classification_id BIGSERIAL PRIMARY KEY,
		review_id BIGINT NOT NULL UNIQUE REFERENCES code_review_suggestions(review_id),
		label TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		category TEXT,
		recurring_issue TEXT,
		rationale TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completion_inputs (
		commit_id TEXT PRIMARY KEY,
		fr_completion_rate DOUBLE PRECISION NOT NULL,
		nfr_completion_rate DOUBLE PRECISION NOT NULL,
		compilation_success_rate DOUBLE PRECISION NOT NULL,
		rationale TEXT
	);

	CREATE TABLE IF NOT EXISTS risk_assessments (
		assessment_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		commit_id TEXT NOT NULL,
		fr_completion_rate DOUBLE PRECISION NOT NULL,
		nfr_completion_rate DOUBLE PRECISION NOT NULL,
		compilation_success_rate DOUBLE PRECISION NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		level TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		rationale TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_project ON code_snapshots(project_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_reviews_commit ON code_review_suggestions(commit_id);
	CREATE INDEX IF NOT EXISTS idx_assessments_project ON risk_assessments(project_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Snapshot operations

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO code_snapshots (commit_id, project_id, parent_commit_id,
			developer_name, code_text, language, created_at)
		VALUES (:commit_id, :project_id, :parent_commit_id,
			:developer_name, :code_text, :language, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, snap); err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSnapshotByCommit(ctx context.Context, commitID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	query := `SELECT * FROM code_snapshots WHERE commit_id = $1`

	err := s.db.GetContext(ctx, &snap, query, commitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &snap, nil
}

func (s *PostgresStore) GetLatestSnapshotByProject(ctx context.Context, projectID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	query := `
		SELECT * FROM code_snapshots
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &snap, query, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return &snap, nil
}

// Review operations

func (s *PostgresStore) CreateReview(ctx context.Context, review *models.ReviewSuggestion) (*models.ReviewSuggestion, error) {
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO code_review_suggestions (commit_id, line_start, line_end,
			suggestion, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING review_id
	`
	err := s.db.QueryRowContext(ctx, query,
		review.CommitID, review.LineStart, review.LineEnd,
		review.Suggestion, review.Severity, review.CreatedAt,
	).Scan(&review.ReviewID)
	if err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

func (s *PostgresStore) GetReviewsForCommit(ctx context.Context, commitID string) ([]*models.ReviewSuggestion, error) {
	var reviews []*models.ReviewSuggestion
	query := `SELECT * FROM code_review_suggestions WHERE commit_id = $1 ORDER BY review_id`

	if err := s.db.SelectContext(ctx, &reviews, query, commitID); err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	return reviews, nil
}

// Classification operations

func (s *PostgresStore) CreateClassification(ctx context.Context, outcome *models.ClassificationOutcome) (*models.ClassificationOutcome, error) {
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now().UTC()
	}
	// Idempotent insert guarded by the unique index on review_id.
	query := `
		INSERT INTO review_classifications (review_id, label, confidence,
			category, recurring_issue, rationale, created_at)
		VALUES (:review_id, :label, :confidence, :category, :recurring_issue, :rationale, :created_at)
		ON CONFLICT (review_id) DO NOTHING
	`
	if _, err := s.db.NamedExecContext(ctx, query, outcome); err != nil {
		return nil, fmt.Errorf("create classification: %w", err)
	}
	return s.GetClassificationForReview(ctx, outcome.ReviewID)
}

func (s *PostgresStore) GetClassificationForReview(ctx context.Context, reviewID int64) (*models.ClassificationOutcome, error) {
	var outcome models.ClassificationOutcome
	query := `SELECT * FROM review_classifications WHERE review_id = $1`

	err := s.db.GetContext(ctx, &outcome, query, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get classification: %w", err)
	}
	return &outcome, nil
}

func (s *PostgresStore) GetClassificationsWithAuthorAndDate(ctx context.Context) ([]*models.ClassifiedReview, error) {
	var rows []classifiedRow
	query := `
		SELECT c.classification_id, c.review_id, c.label, c.confidence,
			c.category, c.recurring_issue, c.rationale, c.created_at,
			s.developer_name, s.created_at AS snapshot_date
		FROM review_classifications c
		JOIN code_review_suggestions r ON r.review_id = c.review_id
		JOIN code_snapshots s ON s.commit_id = r.commit_id
		ORDER BY c.classification_id
	`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("get classifications with author: %w", err)
	}

	out := make([]*models.ClassifiedReview, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// Completion inputs

func (s *PostgresStore) SaveCompletionInputs(ctx context.Context, inputs *models.CompletionInputs) error {
	query := `
		INSERT INTO completion_inputs (commit_id, fr_completion_rate,
			nfr_completion_rate, compilation_success_rate, rationale)
		VALUES (:commit_id, :fr_completion_rate, :nfr_completion_rate,
			:compilation_success_rate, :rationale)
		ON CONFLICT (commit_id) DO UPDATE SET
			fr_completion_rate = EXCLUDED.fr_completion_rate,
			nfr_completion_rate = EXCLUDED.nfr_completion_rate,
			compilation_success_rate = EXCLUDED.compilation_success_rate,
			rationale = EXCLUDED.rationale
	`
	if _, err := s.db.NamedExecContext(ctx, query, inputs); err != nil {
		return fmt.Errorf("save completion inputs: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCompletionInputs(ctx context.Context, commitID string) (*models.CompletionInputs, error) {
	var inputs models.CompletionInputs
	query := `SELECT * FROM completion_inputs WHERE commit_id = $1`

	err := s.db.GetContext(ctx, &inputs, query, commitID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get completion inputs: %w", err)
	}
	return &inputs, nil
}

// Risk assessment operations

func (s *PostgresStore) CreateRiskAssessment(ctx context.Context, assessment *models.RiskAssessment) error {
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO risk_assessments (assessment_id, project_id, commit_id,
			fr_completion_rate, nfr_completion_rate, compilation_success_rate,
			score, level, recommendation, rationale, created_at)
		VALUES (:assessment_id, :project_id, :commit_id,
			:fr_completion_rate, :nfr_completion_rate, :compilation_success_rate,
			:score, :level, :recommendation, :rationale, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, assessment); err != nil {
		return fmt.Errorf("create risk assessment: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetRiskAssessments(ctx context.Context, projectID string) ([]*models.RiskAssessment, error) {
	var assessments []*models.RiskAssessment
	query := `
		SELECT * FROM risk_assessments
		WHERE project_id = $1
		ORDER BY created_at DESC
	`
	if err := s.db.SelectContext(ctx, &assessments, query, projectID); err != nil {
		return nil, fmt.Errorf("get risk assessments: %w", err)
	}
	return assessments, nil
}
