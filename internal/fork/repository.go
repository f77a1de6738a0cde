package fork

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/macroscopehq/prospector/internal/loggy"
)

var (
	// ErrForkNotFound is returned when a fork is not found
	ErrForkNotFound = errors.New("fork not found")

	// ErrPRNotFound is returned when a tracked PR is not found
	ErrPRNotFound = errors.New("tracked PR not found")
)

// Repository defines persistence operations for forks and tracked PRs
type Repository interface {
	CreateFork(ctx context.Context, f *Fork) error
	UpdateFork(ctx context.Context, f *Fork) error
	GetForkByID(ctx context.Context, id string) (*Fork, error)
	GetForkByUpstream(ctx context.Context, owner, repo string) (*Fork, error)
	ListForks(ctx context.Context) ([]*Fork, error)

	CreatePR(ctx context.Context, pr *TrackedPR) error
	UpdatePR(ctx context.Context, pr *TrackedPR) error
	GetPRByID(ctx context.Context, id string) (*TrackedPR, error)
	GetPRByUpstreamNumber(ctx context.Context, forkID string, number int) (*TrackedPR, error)
	ListPRsByFork(ctx context.Context, forkID string) ([]*TrackedPR, error)
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new fork SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) Repository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

var forkColumns = []string{
	"id",
	"upstream_owner",
	"upstream_repo",
	"fork_owner",
	"fork_repo",
	"default_branch",
	"status",
	"html_url",
	"created_at",
	"updated_at",
}

// CreateFork saves a fork record. Re-forking an upstream that already has
// a row upserts onto it instead of failing the unique constraint.
func (r *SQLRepository) CreateFork(ctx context.Context, f *Fork) error {
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now

	query, args, err := r.builder.
		Insert("forks").
		Columns(forkColumns...).
		Values(
			f.ID,
			f.UpstreamOwner,
			f.UpstreamRepo,
			f.ForkOwner,
			f.ForkRepo,
			f.DefaultBranch,
			string(f.Status),
			f.HTMLURL,
			f.CreatedAt,
			f.UpdatedAt,
		).
		Suffix(`ON CONFLICT (upstream_owner, upstream_repo) DO UPDATE SET
			fork_owner = excluded.fork_owner,
			fork_repo = excluded.fork_repo,
			default_branch = excluded.default_branch,
			status = excluded.status,
			html_url = excluded.html_url,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting fork: %w", err)
	}

	// A conflicting row keeps its id and created_at; read them back so the
	// caller holds the canonical record
	stored, err := r.GetForkByUpstream(ctx, f.UpstreamOwner, f.UpstreamRepo)
	if err != nil {
		return fmt.Errorf("reading back fork: %w", err)
	}
	f.ID = stored.ID
	f.CreatedAt = stored.CreatedAt

	r.logger.Info("Saved fork record", "id", f.ID, "upstream", f.UpstreamFullName())
	return nil
}

// UpdateFork updates an existing fork record
func (r *SQLRepository) UpdateFork(ctx context.Context, f *Fork) error {
	f.UpdatedAt = time.Now()

	query, args, err := r.builder.
		Update("forks").
		Set("fork_owner", f.ForkOwner).
		Set("fork_repo", f.ForkRepo).
		Set("default_branch", f.DefaultBranch).
		Set("status", string(f.Status)).
		Set("html_url", f.HTMLURL).
		Set("updated_at", f.UpdatedAt).
		Where(sq.Eq{"id": f.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating fork: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrForkNotFound
	}

	return nil
}

// GetForkByID retrieves a fork by its ID
func (r *SQLRepository) GetForkByID(ctx context.Context, id string) (*Fork, error) {
	return r.getFork(ctx, sq.Eq{"id": id})
}

// GetForkByUpstream retrieves a fork by its upstream owner and repo
func (r *SQLRepository) GetForkByUpstream(ctx context.Context, owner, repo string) (*Fork, error) {
	return r.getFork(ctx, sq.Eq{"upstream_owner": owner, "upstream_repo": repo})
}

func (r *SQLRepository) getFork(ctx context.Context, where sq.Eq) (*Fork, error) {
	query, args, err := r.builder.
		Select(forkColumns...).
		From("forks").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	f, err := scanFork(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrForkNotFound
		}
		return nil, fmt.Errorf("scanning fork: %w", err)
	}

	return f, nil
}

// ListForks returns all forks, newest first
func (r *SQLRepository) ListForks(ctx context.Context) ([]*Fork, error) {
	query, args, err := r.builder.
		Select(forkColumns...).
		From("forks").
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying forks: %w", err)
	}
	defer rows.Close()

	var forks []*Fork
	for rows.Next() {
		f, err := scanFork(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning fork: %w", err)
		}
		forks = append(forks, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating forks: %w", err)
	}

	return forks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFork(row scanner) (*Fork, error) {
	var f Fork
	var status string
	err := row.Scan(
		&f.ID,
		&f.UpstreamOwner,
		&f.UpstreamRepo,
		&f.ForkOwner,
		&f.ForkRepo,
		&f.DefaultBranch,
		&status,
		&f.HTMLURL,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	f.Status = Status(status)
	return &f, nil
}

var prColumns = []string{
	"id",
	"fork_id",
	"upstream_number",
	"fork_number",
	"title",
	"author",
	"head_branch",
	"base_branch",
	"status",
	"html_url",
	"created_at",
	"updated_at",
}

// CreatePR saves a new tracked PR record
func (r *SQLRepository) CreatePR(ctx context.Context, pr *TrackedPR) error {
	now := time.Now()
	if pr.CreatedAt.IsZero() {
		pr.CreatedAt = now
	}
	pr.UpdatedAt = now

	query, args, err := r.builder.
		Insert("tracked_prs").
		Columns(prColumns...).
		Values(
			pr.ID,
			pr.ForkID,
			pr.UpstreamNumber,
			nullableInt(pr.ForkNumber),
			pr.Title,
			pr.Author,
			pr.HeadBranch,
			pr.BaseBranch,
			string(pr.Status),
			pr.HTMLURL,
			pr.CreatedAt,
			pr.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building insert query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting tracked PR: %w", err)
	}

	r.logger.Info("Created tracked PR", "id", pr.ID, "fork_id", pr.ForkID, "upstream_number", pr.UpstreamNumber)
	return nil
}

// UpdatePR updates an existing tracked PR record
func (r *SQLRepository) UpdatePR(ctx context.Context, pr *TrackedPR) error {
	pr.UpdatedAt = time.Now()

	query, args, err := r.builder.
		Update("tracked_prs").
		Set("fork_number", nullableInt(pr.ForkNumber)).
		Set("title", pr.Title).
		Set("author", pr.Author).
		Set("head_branch", pr.HeadBranch).
		Set("base_branch", pr.BaseBranch).
		Set("status", string(pr.Status)).
		Set("html_url", pr.HTMLURL).
		Set("updated_at", pr.UpdatedAt).
		Where(sq.Eq{"id": pr.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating tracked PR: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return ErrPRNotFound
	}

	return nil
}

// GetPRByID retrieves a tracked PR by its ID
func (r *SQLRepository) GetPRByID(ctx context.Context, id string) (*TrackedPR, error) {
	return r.getPR(ctx, sq.Eq{"id": id})
}

// GetPRByUpstreamNumber retrieves a tracked PR by its fork and upstream number
func (r *SQLRepository) GetPRByUpstreamNumber(ctx context.Context, forkID string, number int) (*TrackedPR, error) {
	return r.getPR(ctx, sq.Eq{"fork_id": forkID, "upstream_number": number})
}

func (r *SQLRepository) getPR(ctx context.Context, where sq.Eq) (*TrackedPR, error) {
	query, args, err := r.builder.
		Select(prColumns...).
		From("tracked_prs").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	pr, err := scanPR(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPRNotFound
		}
		return nil, fmt.Errorf("scanning tracked PR: %w", err)
	}

	return pr, nil
}

// ListPRsByFork returns all tracked PRs for a fork, newest first
func (r *SQLRepository) ListPRsByFork(ctx context.Context, forkID string) ([]*TrackedPR, error) {
	query, args, err := r.builder.
		Select(prColumns...).
		From("tracked_prs").
		Where(sq.Eq{"fork_id": forkID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tracked PRs: %w", err)
	}
	defer rows.Close()

	var prs []*TrackedPR
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tracked PR: %w", err)
		}
		prs = append(prs, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracked PRs: %w", err)
	}

	return prs, nil
}

func scanPR(row scanner) (*TrackedPR, error) {
	var pr TrackedPR
	var status string
	var forkNumber sql.NullInt64
	err := row.Scan(
		&pr.ID,
		&pr.ForkID,
		&pr.UpstreamNumber,
		&forkNumber,
		&pr.Title,
		&pr.Author,
		&pr.HeadBranch,
		&pr.BaseBranch,
		&status,
		&pr.HTMLURL,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	pr.Status = PRStatus(status)
	if forkNumber.Valid {
		pr.ForkNumber = int(forkNumber.Int64)
	}
	return &pr, nil
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
