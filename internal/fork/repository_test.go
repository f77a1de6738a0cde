package fork

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroscopehq/prospector/internal/loggy"
)

func newTestRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  loggy.NewNoopLogger(),
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

func TestForkRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	defer db.Close()

	repo := newTestRepository(db)

	sample := &Fork{
		ID:            "fork-01HTEST0000000000000000000",
		UpstreamOwner: "acme",
		UpstreamRepo:  "widgets",
		ForkOwner:     "macroscope-prospects",
		ForkRepo:      "widgets",
		DefaultBranch: "main",
		Status:        StatusPending,
	}

	t.Run("CreateFork", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO forks").
			WithArgs(
				sample.ID,
				sample.UpstreamOwner,
				sample.UpstreamRepo,
				sample.ForkOwner,
				sample.ForkRepo,
				sample.DefaultBranch,
				string(sample.Status),
				sample.HTMLURL,
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT .+ FROM forks").
			WithArgs(sample.UpstreamOwner, sample.UpstreamRepo).
			WillReturnRows(sqlmock.NewRows(forkColumns).
				AddRow(
					sample.ID,
					sample.UpstreamOwner,
					sample.UpstreamRepo,
					sample.ForkOwner,
					sample.ForkRepo,
					sample.DefaultBranch,
					string(sample.Status),
					sample.HTMLURL,
					time.Now(),
					time.Now(),
				))

		err := repo.CreateFork(context.Background(), sample)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreateFork upserts onto an existing upstream row", func(t *testing.T) {
		refork := *sample
		refork.ID = "fork-01HTEST0000000000000000009"
		refork.CreatedAt = time.Time{}

		mock.ExpectExec("INSERT INTO forks").
			WillReturnResult(sqlmock.NewResult(1, 1))

		// The conflict keeps the original row, so the read-back returns the
		// first id, not the one the caller generated
		originalCreated := time.Now().Add(-time.Hour)
		mock.ExpectQuery("SELECT .+ FROM forks").
			WithArgs(refork.UpstreamOwner, refork.UpstreamRepo).
			WillReturnRows(sqlmock.NewRows(forkColumns).
				AddRow(
					sample.ID,
					refork.UpstreamOwner,
					refork.UpstreamRepo,
					refork.ForkOwner,
					refork.ForkRepo,
					refork.DefaultBranch,
					string(refork.Status),
					refork.HTMLURL,
					originalCreated,
					time.Now(),
				))

		err := repo.CreateFork(context.Background(), &refork)
		require.NoError(t, err)
		assert.Equal(t, sample.ID, refork.ID)
		assert.WithinDuration(t, originalCreated, refork.CreatedAt, time.Second)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetForkByUpstream", func(t *testing.T) {
		rows := sqlmock.NewRows(forkColumns).
			AddRow(
				sample.ID,
				sample.UpstreamOwner,
				sample.UpstreamRepo,
				sample.ForkOwner,
				sample.ForkRepo,
				sample.DefaultBranch,
				"ready",
				"https://github.com/macroscope-prospects/widgets",
				time.Now(),
				time.Now(),
			)

		mock.ExpectQuery("SELECT .+ FROM forks").
			WithArgs(sample.UpstreamOwner, sample.UpstreamRepo).
			WillReturnRows(rows)

		got, err := repo.GetForkByUpstream(context.Background(), "acme", "widgets")
		require.NoError(t, err)
		assert.Equal(t, StatusReady, got.Status)
		assert.Equal(t, "acme/widgets", got.UpstreamFullName())
		assert.Equal(t, "macroscope-prospects/widgets", got.ForkFullName())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetForkByID not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT .+ FROM forks").
			WithArgs("fork-missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetForkByID(context.Background(), "fork-missing")
		assert.ErrorIs(t, err, ErrForkNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateFork not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE forks").
			WillReturnResult(sqlmock.NewResult(0, 0))

		missing := *sample
		missing.ID = "fork-missing"
		err := repo.UpdateFork(context.Background(), &missing)
		assert.ErrorIs(t, err, ErrForkNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTrackedPRRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	defer db.Close()

	repo := newTestRepository(db)

	sample := &TrackedPR{
		ID:             "pr-01HTEST0000000000000000001",
		ForkID:         "fork-01HTEST0000000000000000000",
		UpstreamNumber: 42,
		Title:          "Fix cache eviction",
		Author:         "octocat",
		HeadBranch:     "pr-42-fix-cache",
		BaseBranch:     "main",
		Status:         PRStatusCreated,
	}

	t.Run("CreatePR stores null fork number until recreated", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO tracked_prs").
			WithArgs(
				sample.ID,
				sample.ForkID,
				sample.UpstreamNumber,
				nil,
				sample.Title,
				sample.Author,
				sample.HeadBranch,
				sample.BaseBranch,
				string(sample.Status),
				sample.HTMLURL,
				sqlmock.AnyArg(),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.CreatePR(context.Background(), sample)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetPRByUpstreamNumber", func(t *testing.T) {
		rows := sqlmock.NewRows(prColumns).
			AddRow(
				sample.ID,
				sample.ForkID,
				sample.UpstreamNumber,
				7,
				sample.Title,
				sample.Author,
				sample.HeadBranch,
				sample.BaseBranch,
				"analyzed",
				"https://github.com/macroscope-prospects/widgets/pull/7",
				time.Now(),
				time.Now(),
			)

		mock.ExpectQuery("SELECT .+ FROM tracked_prs").
			WithArgs(sample.ForkID, sample.UpstreamNumber).
			WillReturnRows(rows)

		got, err := repo.GetPRByUpstreamNumber(context.Background(), sample.ForkID, 42)
		require.NoError(t, err)
		assert.Equal(t, 7, got.ForkNumber)
		assert.Equal(t, PRStatusAnalyzed, got.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetPRByID handles null fork number", func(t *testing.T) {
		rows := sqlmock.NewRows(prColumns).
			AddRow(
				sample.ID,
				sample.ForkID,
				sample.UpstreamNumber,
				nil,
				sample.Title,
				sample.Author,
				sample.HeadBranch,
				sample.BaseBranch,
				string(sample.Status),
				"",
				time.Now(),
				time.Now(),
			)

		mock.ExpectQuery("SELECT .+ FROM tracked_prs").
			WithArgs(sample.ID).
			WillReturnRows(rows)

		got, err := repo.GetPRByID(context.Background(), sample.ID)
		require.NoError(t, err)
		assert.Zero(t, got.ForkNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
