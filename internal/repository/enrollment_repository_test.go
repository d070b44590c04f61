package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var enrollmentRowColumns = []string{
	"id", "learner_id", "learner_email", "offering_id", "status", "progress_percent",
	"completed_units", "total_units", "units", "last_activity_at", "last_login_at", "login_count_30d",
	"reactivated_at", "refunded", "refunded_at", "manual_inactive", "manual_inactive_reason", "updated_at",
}

func addEnrollmentRow(rows *sqlmock.Rows, id, learnerID string) *sqlmock.Rows {
	last := time.Now().Add(-48 * time.Hour)
	return rows.AddRow(id, learnerID, learnerID+"@example.com", "off-1", models.EnrollmentStatusActive,
		42.5, 3, 10, []byte(`[]`), last, last, 4, nil, false, nil, false, nil, time.Now())
}

func TestEnrollmentRepositoryFindByLearnerAndOffering(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := addEnrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", "lrn-1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE learner_id = $1 AND offering_id = $2")).
		WithArgs("lrn-1", "off-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByLearnerAndOffering(context.Background(), "lrn-1", "off-1")
	require.NoError(t, err)
	require.Equal(t, "enr-1", enrollment.ID)
	require.Equal(t, "lrn-1@example.com", enrollment.LearnerEmail)
	require.Equal(t, 42.5, enrollment.ProgressPercent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryFindByLearnerAndOfferingMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE learner_id = $1 AND offering_id = $2")).
		WithArgs("lrn-x", "off-x").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByLearnerAndOffering(context.Background(), "lrn-x", "off-x")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListForBatchFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := addEnrollmentRow(sqlmock.NewRows(enrollmentRowColumns), "enr-1", "lrn-1")
	rows = addEnrollmentRow(rows, "enr-2", "lrn-2")

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE offering_id = $1 AND status = $2 ORDER BY id LIMIT 50 OFFSET 50")).
		WithArgs("off-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments WHERE offering_id = $1 AND status = $2")).
		WithArgs("off-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(120))

	enrollments, total, err := repo.ListForBatch(context.Background(), models.EnrollmentFilter{
		OfferingID: "off-1",
		Status:     models.EnrollmentStatusActive,
		Page:       2,
		PageSize:   50,
	})
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.Equal(t, 120, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListForBatchDefaultsPaging(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments ORDER BY id LIMIT 200 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(enrollmentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	enrollments, total, err := repo.ListForBatch(context.Background(), models.EnrollmentFilter{Page: 0, PageSize: -1})
	require.NoError(t, err)
	require.Empty(t, enrollments)
	require.Zero(t, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
