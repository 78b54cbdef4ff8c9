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

// ErrDuplicateAttendance signals a (user, date, class type) uniqueness
// violation.
var ErrDuplicateAttendance = fmt.Errorf("attendance already registered")

// AttendanceRepository handles persistence of attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Create persists a single attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendances (id, user_id, date, class_type, class_schedule_id, notes, registered_by_id, created_at)
        VALUES (:id, :user_id, :date, :class_type, :class_schedule_id, :notes, :registered_by_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAttendance
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// BulkCreate inserts attendance rows skipping existing duplicates, returning
// the number actually created.
func (r *AttendanceRepository) BulkCreate(ctx context.Context, records []models.Attendance) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	created := 0
	err := Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO attendances (id, user_id, date, class_type, class_schedule_id, notes, registered_by_id, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (user_id, date, class_type) DO NOTHING`
		for i := range records {
			record := &records[i]
			if record.ID == "" {
				record.ID = uuid.NewString()
			}
			if record.CreatedAt.IsZero() {
				record.CreatedAt = time.Now().UTC()
			}
			res, err := tx.ExecContext(ctx, query,
				record.ID, record.UserID, record.Date, record.ClassType,
				record.ClassScheduleID, record.Notes, record.RegisteredByID, record.CreatedAt)
			if err != nil {
				return fmt.Errorf("bulk insert attendance: %w", err)
			}
			if affected, err := res.RowsAffected(); err == nil && affected > 0 {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// FindDetailByID returns an attendance with its owner's academy for tenant
// checks.
func (r *AttendanceRepository) FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error) {
	const query = `SELECT a.id, a.user_id, a.date, a.class_type, a.class_schedule_id, a.notes, a.registered_by_id, a.created_at,
        u.name AS user_name, u.academy_id AS user_academy_id, COALESCE(rb.name, '') AS registered_by_name
        FROM attendances a
        JOIN users u ON u.id = a.user_id
        LEFT JOIN users rb ON rb.id = a.registered_by_id
        WHERE a.id = $1`
	var detail models.AttendanceDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Delete removes an attendance record.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM attendances WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete attendance: %w", err)
	}
	return nil
}

// List returns attendance records scoped to an academy, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error) {
	base := `FROM attendances a
JOIN users u ON u.id = a.user_id
LEFT JOIN users rb ON rb.id = a.registered_by_id`
	conditions := []string{"u.academy_id = $1"}
	args := []interface{}{filter.AcademyID}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.ClassType != nil {
		conditions = append(conditions, fmt.Sprintf("a.class_type = $%d", len(args)+1))
		args = append(args, *filter.ClassType)
	}
	if filter.Month != nil {
		start := time.Date(filter.Month.Year(), filter.Month.Month(), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, 0)
		conditions = append(conditions, fmt.Sprintf("a.date >= $%d AND a.date < $%d", len(args)+1, len(args)+2))
		args = append(args, start, end)
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

	query := fmt.Sprintf(`SELECT a.id, a.user_id, a.date, a.class_type, a.class_schedule_id, a.notes, a.registered_by_id, a.created_at,
        u.name AS user_name, u.academy_id AS user_academy_id, COALESCE(rb.name, '') AS registered_by_name
        %s ORDER BY a.date DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var records []models.AttendanceDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendances: %w", err)
	}
	return records, total, nil
}

// CountAll returns the user's all-time attendance count.
func (r *AttendanceRepository) CountAll(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendances WHERE user_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count attendances: %w", err)
	}
	return count, nil
}

// CountBetween returns the user's attendance count within [from, to).
func (r *AttendanceRepository) CountBetween(ctx context.Context, userID string, from, to time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM attendances WHERE user_id = $1 AND date >= $2 AND date < $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID, from, to); err != nil {
		return 0, fmt.Errorf("count attendances in range: %w", err)
	}
	return count, nil
}

// HistogramByType returns per-class-type counts ordered by count descending
// then class type, so the first row is the deterministic favorite.
func (r *AttendanceRepository) HistogramByType(ctx context.Context, userID string) ([]models.ClassTypeCount, error) {
	const query = `SELECT class_type, COUNT(*) AS count FROM attendances
        WHERE user_id = $1 GROUP BY class_type ORDER BY count DESC, class_type ASC`
	var histogram []models.ClassTypeCount
	if err := r.db.SelectContext(ctx, &histogram, query, userID); err != nil {
		return nil, fmt.Errorf("attendance histogram: %w", err)
	}
	return histogram, nil
}

// RecentDistinctDates returns up to limit distinct attendance dates for the
// user, most recent first. The streak computation reads at most 60 of these;
// longer streaks are deliberately undercounted.
func (r *AttendanceRepository) RecentDistinctDates(ctx context.Context, userID string, limit int) ([]time.Time, error) {
	const query = `SELECT DISTINCT date FROM attendances WHERE user_id = $1 ORDER BY date DESC LIMIT $2`
	var dates []time.Time
	if err := r.db.SelectContext(ctx, &dates, query, userID, limit); err != nil {
		return nil, fmt.Errorf("recent attendance dates: %w", err)
	}
	return dates, nil
}

// ListRange returns the user's records within [from, to) in ascending date
// order, used for the month calendar and history exports.
func (r *AttendanceRepository) ListRange(ctx context.Context, userID string, from, to time.Time) ([]models.Attendance, error) {
	const query = `SELECT id, user_id, date, class_type, class_schedule_id, notes, registered_by_id, created_at
        FROM attendances WHERE user_id = $1 AND date >= $2 AND date < $3 ORDER BY date ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list attendance range: %w", err)
	}
	return records, nil
}

// ListAll returns every record for the user in ascending date order.
func (r *AttendanceRepository) ListAll(ctx context.Context, userID string) ([]models.Attendance, error) {
	const query = `SELECT id, user_id, date, class_type, class_schedule_id, notes, registered_by_id, created_at
        FROM attendances WHERE user_id = $1 ORDER BY date ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, userID); err != nil {
		return nil, fmt.Errorf("list attendance history: %w", err)
	}
	return records, nil
}
