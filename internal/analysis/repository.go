package analysis

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/macroscopehq/prospector/internal/database"
	"github.com/macroscopehq/prospector/internal/loggy"
)

// ErrAnalysisNotFound is returned when no analysis exists for a PR
var ErrAnalysisNotFound = errors.New("analysis not found")

// Repository defines persistence operations for PR analyses
type Repository interface {
	SaveLatest(ctx context.Context, a *PRAnalysis) error
	GetLatestByPR(ctx context.Context, prID string) (*PRAnalysis, error)
	DeleteByPR(ctx context.Context, prID string) error
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new analysis SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// SaveLatest stores an analysis as the single retained analysis for its PR.
// Any previous analysis for the PR is removed in the same transaction, so
// readers never observe two analyses for one PR.
func (r *SQLRepository) SaveLatest(ctx context.Context, a *PRAnalysis) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		query, args, err := r.builder.
			Delete("pr_analyses").
			Where(sq.Eq{"pr_id": a.PRID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building delete query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deleting previous analysis: %w", err)
		}

		query, args, err = r.builder.
			Insert("pr_analyses").
			Columns(
				"id",
				"pr_id",
				"schema_version",
				"model",
				"analysis_json",
				"created_at",
			).
			Values(
				a.ID,
				a.PRID,
				string(a.SchemaVersion),
				a.Model,
				string(a.AnalysisJSON),
				a.CreatedAt,
			).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting analysis: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("Saved analysis", "id", a.ID, "pr_id", a.PRID, "schema_version", a.SchemaVersion)
	return nil
}

// GetLatestByPR retrieves the retained analysis for a PR
func (r *SQLRepository) GetLatestByPR(ctx context.Context, prID string) (*PRAnalysis, error) {
	query, args, err := r.builder.
		Select(
			"id",
			"pr_id",
			"schema_version",
			"model",
			"analysis_json",
			"created_at",
		).
		From("pr_analyses").
		Where(sq.Eq{"pr_id": prID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)

	var a PRAnalysis
	var rawJSON string
	if err := row.Scan(&a.ID, &a.PRID, &a.SchemaVersion, &a.Model, &rawJSON, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("scanning analysis: %w", err)
	}
	a.AnalysisJSON = []byte(rawJSON)

	return &a, nil
}

// DeleteByPR removes the retained analysis for a PR, if any
func (r *SQLRepository) DeleteByPR(ctx context.Context, prID string) error {
	query, args, err := r.builder.
		Delete("pr_analyses").
		Where(sq.Eq{"pr_id": prID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting analysis: %w", err)
	}

	return nil
}
