package analysis

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

func TestAnalysisRepository(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	defer db.Close()

	repo := newTestRepository(db)

	sample := &PRAnalysis{
		ID:            "ana-01HTEST0000000000000000000",
		PRID:          "pr-01HTEST0000000000000000001",
		SchemaVersion: SchemaV2,
		Model:         "claude-3-7-sonnet-20250219",
		AnalysisJSON:  []byte(`{"totalCommentsProcessed":0,"meaningfulBugsCount":0,"outreachReadyCount":0,"bestBugForOutreachIndex":null,"allComments":[],"summary":{"bugsBySeverity":{},"recommendation":"no comments"}}`),
		CreatedAt:     time.Now(),
	}

	t.Run("SaveLatest replaces previous analysis", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM pr_analyses").
			WithArgs(sample.PRID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO pr_analyses").
			WithArgs(
				sample.ID,
				sample.PRID,
				string(sample.SchemaVersion),
				sample.Model,
				string(sample.AnalysisJSON),
				sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := repo.SaveLatest(context.Background(), sample)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SaveLatest rolls back on insert failure", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM pr_analyses").
			WithArgs(sample.PRID).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO pr_analyses").
			WillReturnError(sql.ErrConnDone)
		mock.ExpectRollback()

		err := repo.SaveLatest(context.Background(), sample)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetLatestByPR", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "pr_id", "schema_version", "model", "analysis_json", "created_at"}).
			AddRow(sample.ID, sample.PRID, string(sample.SchemaVersion), sample.Model, string(sample.AnalysisJSON), sample.CreatedAt)

		mock.ExpectQuery("SELECT .+ FROM pr_analyses").
			WithArgs(sample.PRID).
			WillReturnRows(rows)

		got, err := repo.GetLatestByPR(context.Background(), sample.PRID)
		require.NoError(t, err)
		assert.Equal(t, sample.ID, got.ID)
		assert.Equal(t, SchemaV2, got.SchemaVersion)
		assert.JSONEq(t, string(sample.AnalysisJSON), string(got.AnalysisJSON))

		result, err := got.Decode()
		require.NoError(t, err)
		assert.Equal(t, SchemaV2, result.Version)
		assert.False(t, result.HasMeaningfulBugs())

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetLatestByPR not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT .+ FROM pr_analyses").
			WithArgs("pr-missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetLatestByPR(context.Background(), "pr-missing")
		assert.ErrorIs(t, err, ErrAnalysisNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteByPR", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM pr_analyses").
			WithArgs(sample.PRID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.DeleteByPR(context.Background(), sample.PRID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
