package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

// Sentinel errors surfaced by the enrollment insert. The service layer maps
// them onto the Conflict taxonomy.
var (
	ErrCapacityReached     = fmt.Errorf("exam capacity reached")
	ErrDuplicateEnrollment = fmt.Errorf("student already enrolled")
)

// ExamStudentRepository handles persistence of exam enrollments.
type ExamStudentRepository struct {
	db *sqlx.DB
}

// NewExamStudentRepository constructs the repository.
func NewExamStudentRepository(db *sqlx.DB) *ExamStudentRepository {
	return &ExamStudentRepository{db: db}
}

// Create inserts an enrollment. The capacity count runs inside the same
// transaction as the insert so concurrent enrollments cannot overbook, and
// the (exam_id, user_id) unique constraint backstops double registration.
func (r *ExamStudentRepository) Create(ctx context.Context, enrollment *models.ExamStudent, capacity *int) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.RegisteredAt.IsZero() {
		enrollment.RegisteredAt = time.Now().UTC()
	}
	if enrollment.Result == "" {
		enrollment.Result = models.ExamResultPending
	}

	return Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		if capacity != nil {
			var count int
			if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM exam_students WHERE exam_id = $1`, enrollment.ExamID); err != nil {
				return fmt.Errorf("count enrollments: %w", err)
			}
			if count >= *capacity {
				return ErrCapacityReached
			}
		}

		const query = `INSERT INTO exam_students (id, exam_id, user_id, result, score, feedback, registered_at, evaluated_at)
            VALUES (:id, :exam_id, :user_id, :result, :score, :feedback, :registered_at, :evaluated_at)`
		if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEnrollment
			}
			return fmt.Errorf("create enrollment: %w", err)
		}
		return nil
	})
}

// FindByExamAndUser returns the enrollment for the given pair.
func (r *ExamStudentRepository) FindByExamAndUser(ctx context.Context, examID, userID string) (*models.ExamStudent, error) {
	const query = `SELECT id, exam_id, user_id, result, score, feedback, registered_at, evaluated_at
        FROM exam_students WHERE exam_id = $1 AND user_id = $2`
	var enrollment models.ExamStudent
	if err := r.db.GetContext(ctx, &enrollment, query, examID, userID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListDetailByExam returns all enrollments for an exam with student metadata,
// oldest registration first.
func (r *ExamStudentRepository) ListDetailByExam(ctx context.Context, examID string) ([]models.ExamStudentDetail, error) {
	const query = `SELECT s.id, s.exam_id, s.user_id, s.result, s.score, s.feedback, s.registered_at, s.evaluated_at,
        u.name AS student_name, u.email AS student_email, u.belt AS student_belt, u.stripe AS student_stripe
        FROM exam_students s
        JOIN users u ON u.id = s.user_id
        WHERE s.exam_id = $1
        ORDER BY s.registered_at ASC`
	var enrollments []models.ExamStudentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, examID); err != nil {
		return nil, fmt.Errorf("list exam enrollments: %w", err)
	}
	return enrollments, nil
}

// Delete removes an enrollment.
func (r *ExamStudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM exam_students WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}
