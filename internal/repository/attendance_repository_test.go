package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendances").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Attendance{
		UserID:    "user-1",
		Date:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ClassType: models.ClassTypeGi,
	})
	require.ErrorIs(t, err, ErrDuplicateAttendance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkCreateSkipsDuplicates(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendances").
		WillReturnResult(sqlmock.NewResult(0, 0)) // conflict, skipped
	mock.ExpectCommit()

	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	created, err := repo.BulkCreate(context.Background(), []models.Attendance{
		{UserID: "user-1", Date: date, ClassType: models.ClassTypeGi},
		{UserID: "user-2", Date: date, ClassType: models.ClassTypeGi},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryHistogramByType(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"class_type", "count"}).
		AddRow(models.ClassTypeGi, 12).
		AddRow(models.ClassTypeNoGi, 12).
		AddRow(models.ClassTypeCompetition, 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_type, COUNT(*) AS count FROM attendances")).
		WithArgs("user-1").
		WillReturnRows(rows)

	histogram, err := repo.HistogramByType(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, histogram, 3)
	assert.Equal(t, models.ClassTypeGi, histogram[0].ClassType)
	assert.Equal(t, 12, histogram[0].Count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryRecentDistinctDates(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"date"}).
		AddRow(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)).
		AddRow(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT date FROM attendances WHERE user_id = $1 ORDER BY date DESC LIMIT $2")).
		WithArgs("user-1", 60).
		WillReturnRows(rows)

	dates, err := repo.RecentDistinctDates(context.Background(), "user-1", 60)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.True(t, dates[0].After(dates[1]))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryCountBetween(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendances WHERE user_id = $1 AND date >= $2 AND date < $3")).
		WithArgs("user-1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	count, err := repo.CountBetween(context.Background(), "user-1", from, to)
	require.NoError(t, err)
	assert.Equal(t, 9, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
