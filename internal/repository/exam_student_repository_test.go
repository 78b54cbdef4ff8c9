package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

func newExamStudentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestExamStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newExamStudentRepoMock(t)
	defer cleanup()
	repo := NewExamStudentRepository(db)

	capacity := 20
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exam_students WHERE exam_id = $1")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectExec("INSERT INTO exam_students").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment := &models.ExamStudent{ExamID: "exam-1", UserID: "user-1"}
	err := repo.Create(context.Background(), enrollment, &capacity)
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.ExamResultPending, enrollment.Result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamStudentRepositoryCreateCapacityReached(t *testing.T) {
	db, mock, cleanup := newExamStudentRepoMock(t)
	defer cleanup()
	repo := NewExamStudentRepository(db)

	capacity := 20
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM exam_students WHERE exam_id = $1")).
		WithArgs("exam-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(20))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.ExamStudent{ExamID: "exam-1", UserID: "user-1"}, &capacity)
	require.ErrorIs(t, err, ErrCapacityReached)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamStudentRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newExamStudentRepoMock(t)
	defer cleanup()
	repo := NewExamStudentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO exam_students").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	// nil capacity skips the headcount check
	err := repo.Create(context.Background(), &models.ExamStudent{ExamID: "exam-1", UserID: "user-1"}, nil)
	require.ErrorIs(t, err, ErrDuplicateEnrollment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExamStudentRepositoryListDetailByExam(t *testing.T) {
	db, mock, cleanup := newExamStudentRepoMock(t)
	defer cleanup()
	repo := NewExamStudentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "exam_id", "user_id", "result", "student_name", "student_email", "student_belt", "student_stripe"}).
		AddRow("enr-1", "exam-1", "user-1", models.ExamResultPending, "Ana", "ana@academia.com", models.BeltBlue, 4)
	mock.ExpectQuery("SELECT (.+) FROM exam_students s").
		WithArgs("exam-1").
		WillReturnRows(rows)

	enrollments, err := repo.ListDetailByExam(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, "Ana", enrollments[0].StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}
