package prompt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/macroscopehq/prospector/internal/database"
	"github.com/macroscopehq/prospector/internal/loggy"
	"github.com/macroscopehq/prospector/internal/ulid"
)

// ErrPromptNotFound is returned when no prompt matches the query
var ErrPromptNotFound = errors.New("prompt not found")

// Repository defines persistence operations for prompts
type Repository interface {
	Create(ctx context.Context, name, body string) (*Prompt, error)
	GetActive(ctx context.Context, name string) (*Prompt, error)
	GetByID(ctx context.Context, id string) (*Prompt, error)
	ListVersions(ctx context.Context, name string) ([]*Prompt, error)
	Activate(ctx context.Context, id string) error
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new prompt SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Create stores a new version of the named prompt and makes it active,
// deactivating any previous active version in the same transaction.
func (r *SQLRepository) Create(ctx context.Context, name, body string) (*Prompt, error) {
	now := time.Now()
	p := &Prompt{
		ID:        ulid.PromptID(),
		Name:      name,
		Body:      body,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		query, args, err := r.builder.
			Select("COALESCE(MAX(version), 0)").
			From("prompts").
			Where(sq.Eq{"name": name}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building version query: %w", err)
		}

		var maxVersion int
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&maxVersion); err != nil {
			return fmt.Errorf("querying max version: %w", err)
		}
		p.Version = maxVersion + 1

		query, args, err = r.builder.
			Update("prompts").
			Set("is_active", false).
			Set("updated_at", now).
			Where(sq.Eq{"name": name, "is_active": true}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building deactivate query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deactivating previous version: %w", err)
		}

		query, args, err = r.builder.
			Insert("prompts").
			Columns("id", "name", "version", "body", "is_active", "created_at", "updated_at").
			Values(p.ID, p.Name, p.Version, p.Body, p.IsActive, p.CreatedAt, p.UpdatedAt).
			ToSql()
		if err != nil {
			return fmt.Errorf("building insert query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting prompt: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("Created prompt", "id", p.ID, "name", p.Name, "version", p.Version)
	return p, nil
}

// GetActive retrieves the active version of the named prompt
func (r *SQLRepository) GetActive(ctx context.Context, name string) (*Prompt, error) {
	return r.getOne(ctx, sq.Eq{"name": name, "is_active": true})
}

// GetByID retrieves a prompt by its ID
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*Prompt, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

func (r *SQLRepository) getOne(ctx context.Context, where sq.Eq) (*Prompt, error) {
	query, args, err := r.builder.
		Select("id", "name", "version", "body", "is_active", "created_at", "updated_at").
		From("prompts").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	row := r.db.QueryRowContext(ctx, query, args...)

	var p Prompt
	if err := row.Scan(&p.ID, &p.Name, &p.Version, &p.Body, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPromptNotFound
		}
		return nil, fmt.Errorf("scanning prompt: %w", err)
	}

	return &p, nil
}

// ListVersions returns all versions of the named prompt, newest first
func (r *SQLRepository) ListVersions(ctx context.Context, name string) ([]*Prompt, error) {
	query, args, err := r.builder.
		Select("id", "name", "version", "body", "is_active", "created_at", "updated_at").
		From("prompts").
		Where(sq.Eq{"name": name}).
		OrderBy("version DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Version, &p.Body, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		prompts = append(prompts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating prompts: %w", err)
	}

	return prompts, nil
}

// Activate makes the identified prompt the active version for its name
func (r *SQLRepository) Activate(ctx context.Context, id string) error {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	return database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		query, args, err := r.builder.
			Update("prompts").
			Set("is_active", false).
			Set("updated_at", now).
			Where(sq.Eq{"name": p.Name, "is_active": true}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building deactivate query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("deactivating previous version: %w", err)
		}

		query, args, err = r.builder.
			Update("prompts").
			Set("is_active", true).
			Set("updated_at", now).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("building activate query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("activating prompt: %w", err)
		}

		return nil
	})
}
