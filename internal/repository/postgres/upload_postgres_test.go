package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"deptportal/internal/model"
	"deptportal/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{
	"id", "category", "owner_id", "original_name", "relative_path",
	"mime_type", "size_bytes", "original_size_bytes", "compressed", "created_at",
}

func sampleUpload(now time.Time) *model.Upload {
	return &model.Upload{
		ID:                "test-uuid",
		Category:          "ResearchPaper",
		OwnerID:           "F01",
		OriginalName:      "paper.pdf",
		RelativePath:      "Faculty/ResearchPapers/F01/paper_1700000000000.pdf",
		MimeType:          "application/pdf",
		SizeBytes:         800,
		OriginalSizeBytes: 1000,
		Compressed:        true,
		CreatedAt:         now,
	}
}

func addRow(rows *sqlmock.Rows, u *model.Upload) *sqlmock.Rows {
	return rows.AddRow(u.ID, u.Category, u.OwnerID, u.OriginalName, u.RelativePath,
		u.MimeType, u.SizeBytes, u.OriginalSizeBytes, u.Compressed, u.CreatedAt)
}

func TestUploadPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)
	u := sampleUpload(time.Now().UTC())

	mock.ExpectQuery("INSERT INTO uploads").
		WithArgs(u.ID, u.Category, u.OwnerID, u.OriginalName, u.RelativePath,
			u.MimeType, u.SizeBytes, u.OriginalSizeBytes, u.Compressed, u.CreatedAt).
		WillReturnRows(addRow(sqlmock.NewRows(columns), u))

	result, err := repo.Create(context.Background(), u)

	assert.NoError(t, err)
	assert.Equal(t, u, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUploadPostgres_CreateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO uploads").WillReturnError(errors.New("db down"))

	result, err := NewUploadPostgres(db).Create(context.Background(), sampleUpload(time.Now()))
	assert.EqualError(t, err, "db down")
	assert.Nil(t, result)
}

func TestUploadPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUploadPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		u := sampleUpload(time.Now())
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE id = ?").
			WithArgs("test-uuid").
			WillReturnRows(addRow(sqlmock.NewRows(columns), u))

		got, err := repo.FindByID(ctx, "test-uuid")

		assert.NoError(t, err)
		assert.Equal(t, "test-uuid", got.ID)
		assert.Equal(t, u.RelativePath, got.RelativePath)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM uploads WHERE id = ?").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		got, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, got)
	})
}

func TestUploadPostgres_List(t *testing.T) {
	tests := []struct {
		name   string
		filter repository.ListFilter
	}{
		{name: "unfiltered", filter: repository.ListFilter{}},
		{name: "by category and owner", filter: repository.ListFilter{Category: "ResearchPaper", OwnerID: "F01"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM uploads WHERE").
				WithArgs(tt.filter.Category, tt.filter.OwnerID).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
			mock.ExpectQuery("SELECT (.+) FROM uploads WHERE (.+) ORDER BY").
				WithArgs(tt.filter.Category, tt.filter.OwnerID, 10, 0).
				WillReturnRows(addRow(sqlmock.NewRows(columns), sampleUpload(time.Now())))

			res, err := NewUploadPostgres(db).List(context.Background(), tt.filter, repository.PageQuery{Limit: 10, Offset: 0})

			require.NoError(t, err)
			assert.Equal(t, 1, res.Total)
			assert.Len(t, res.Items, 1)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUploadPostgres_ListCountError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("count fail"))

	res, err := NewUploadPostgres(db).List(context.Background(), repository.ListFilter{}, repository.PageQuery{Limit: 10})
	assert.EqualError(t, err, "count fail")
	assert.Nil(t, res)
}

func TestUploadPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM uploads WHERE id = ?").
		WithArgs("test-uuid").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewUploadPostgres(db).Delete(context.Background(), "test-uuid")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
