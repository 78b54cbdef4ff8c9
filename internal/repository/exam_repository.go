package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

// ExamRepository handles persistence of grading exams.
type ExamRepository struct {
	db *sqlx.DB
}

// NewExamRepository constructs the repository.
func NewExamRepository(db *sqlx.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

const examColumns = `id, title, date, location, description, belt_from, belt_to, max_students, exam_fee, min_attendances, min_videos_completed, academy_id, status, created_at, updated_at`

// FindByID returns an exam by its ID.
func (r *ExamRepository) FindByID(ctx context.Context, id string) (*models.Exam, error) {
	query := fmt.Sprintf(`SELECT %s FROM exams WHERE id = $1`, examColumns)
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// List returns exams for an academy with their enrollment counts.
func (r *ExamRepository) List(ctx context.Context, academyID string, filter models.ExamFilter) ([]models.ExamDetail, int, error) {
	conditions := []string{"e.academy_id = $1"}
	args := []interface{}{academyID}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.BeltTo != nil {
		conditions = append(conditions, fmt.Sprintf("e.belt_to = $%d", len(args)+1))
		args = append(args, *filter.BeltTo)
	}
	if filter.Upcoming {
		conditions = append(conditions, fmt.Sprintf("e.date >= $%d", len(args)+1))
		args = append(args, time.Now().UTC())
		conditions = append(conditions, fmt.Sprintf("e.status IN ($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, models.ExamStatusScheduled, models.ExamStatusInProgress)
	}

	clause := " WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.title, e.date, e.location, e.description, e.belt_from, e.belt_to,
        e.max_students, e.exam_fee, e.min_attendances, e.min_videos_completed, e.academy_id, e.status, e.created_at, e.updated_at,
        COUNT(s.id) AS students_count
        FROM exams e
        LEFT JOIN exam_students s ON s.exam_id = e.id
        %s GROUP BY e.id ORDER BY e.date ASC LIMIT %d OFFSET %d`, clause, size, offset)

	var exams []models.ExamDetail
	if err := r.db.SelectContext(ctx, &exams, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list exams: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM exams e" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count exams: %w", err)
	}
	return exams, total, nil
}

// Create persists a new exam.
func (r *ExamRepository) Create(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if exam.CreatedAt.IsZero() {
		exam.CreatedAt = now
	}
	exam.UpdatedAt = now
	if exam.Status == "" {
		exam.Status = models.ExamStatusScheduled
	}

	const query = `INSERT INTO exams (id, title, date, location, description, belt_from, belt_to, max_students, exam_fee, min_attendances, min_videos_completed, academy_id, status, created_at, updated_at)
        VALUES (:id, :title, :date, :location, :description, :belt_from, :belt_to, :max_students, :exam_fee, :min_attendances, :min_videos_completed, :academy_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an exam.
func (r *ExamRepository) Update(ctx context.Context, exam *models.Exam) error {
	exam.UpdatedAt = time.Now().UTC()
	const query = `UPDATE exams SET title = :title, date = :date, location = :location, description = :description,
        max_students = :max_students, exam_fee = :exam_fee, min_attendances = :min_attendances,
        min_videos_completed = :min_videos_completed, status = :status, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("update exam: %w", err)
	}
	return nil
}

// Delete removes an exam; enrollments cascade at the schema level.
func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM exams WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete exam: %w", err)
	}
	return nil
}
