package email

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/macroscopehq/prospector/internal/loggy"
)

// ErrDraftNotFound is returned when an email draft is not found
var ErrDraftNotFound = errors.New("email draft not found")

// Repository defines persistence operations for email drafts
type Repository interface {
	Create(ctx context.Context, d *Draft) error
	GetByID(ctx context.Context, id string) (*Draft, error)
	ListByPR(ctx context.Context, prID string) ([]*Draft, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new email SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Create saves a new email draft
func (r *SQLRepository) Create(ctx context.Context, d *Draft) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = StatusDraft
	}

	query, args, err := r.builder.
		Insert("emails").
		Columns("id", "pr_id", "subject", "body", "status", "created_at", "updated_at").
		Values(d.ID, d.PRID, d.Subject, d.Body, string(d.Status), d.CreatedAt, d.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting email draft: %w", err)
	}

	r.logger.Info("Created email draft", "id", d.ID, "pr_id", d.PRID)
	return nil
}

// GetByID retrieves an email draft by its ID
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*Draft, error) {
	query, args, err := r.builder.
		Select("id", "pr_id", "subject", "body", "status", "created_at", "updated_at").
		From("emails").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)

	var d Draft
	var status string
	if err := row.Scan(&d.ID, &d.PRID, &d.Subject, &d.Body, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("scanning email draft: %w", err)
	}
	d.Status = Status(status)

	return &d, nil
}

// ListByPR returns all drafts for a PR, newest first
func (r *SQLRepository) ListByPR(ctx context.Context, prID string) ([]*Draft, error) {
	query, args, err := r.builder.
		Select("id", "pr_id", "subject", "body", "status", "created_at", "updated_at").
		From("emails").
		Where(sq.Eq{"pr_id": prID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying email drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		var d Draft
		var status string
		if err := rows.Scan(&d.ID, &d.PRID, &d.Subject, &d.Body, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning email draft: %w", err)
		}
		d.Status = Status(status)
		drafts = append(drafts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating email drafts: %w", err)
	}

	return drafts, nil
}

// UpdateStatus changes the status of an email draft
func (r *SQLRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query, args, err := r.builder.
		Update("emails").
		Set("status", string(status)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating email draft: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrDraftNotFound
	}

	return nil
}
