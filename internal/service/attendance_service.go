package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/access"
	"github.com/noah-isme/bjj-academy-api/internal/models"
	"github.com/noah-isme/bjj-academy-api/internal/repository"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
	"github.com/noah-isme/bjj-academy-api/pkg/export"
)

// streakLookback bounds the backward streak walk to the 60 most recent
// distinct attendance dates. Longer streaks are undercounted on purpose; the
// cap keeps the computation O(1) regardless of history size.
const streakLookback = 60

type attendanceRepository interface {
	Create(ctx context.Context, record *models.Attendance) error
	BulkCreate(ctx context.Context, records []models.Attendance) (int, error)
	FindDetailByID(ctx context.Context, id string) (*models.AttendanceDetail, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceDetail, int, error)
	CountAll(ctx context.Context, userID string) (int, error)
	CountBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	HistogramByType(ctx context.Context, userID string) ([]models.ClassTypeCount, error)
	RecentDistinctDates(ctx context.Context, userID string, limit int) ([]time.Time, error)
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]models.Attendance, error)
	ListAll(ctx context.Context, userID string) ([]models.Attendance, error)
}

type attendanceUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindActiveInAcademy(ctx context.Context, id, academyID string) (*models.User, error)
	FilterActiveIDsInAcademy(ctx context.Context, ids []string, academyID string) ([]string, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateAttendanceRequest registers one check-in.
type CreateAttendanceRequest struct {
	UserID          string           `json:"user_id" validate:"required"`
	Date            time.Time        `json:"date" validate:"required"`
	ClassType       models.ClassType `json:"class_type" validate:"required"`
	ClassScheduleID *string          `json:"class_schedule_id,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
}

// BulkAttendanceRequest registers one class session for many students.
type BulkAttendanceRequest struct {
	UserIDs   []string         `json:"user_ids" validate:"required,min=1"`
	Date      time.Time        `json:"date" validate:"required"`
	ClassType models.ClassType `json:"class_type" validate:"required"`
	Notes     *string          `json:"notes,omitempty"`
}

// AttendanceService manages check-ins and derives attendance statistics.
type AttendanceService struct {
	repo      attendanceRepository
	users     attendanceUserRepository
	cache     statsCache
	cacheTTL  time.Duration
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService. A nil cache disables
// stats caching; metrics may be nil.
func NewAttendanceService(repo attendanceRepository, users attendanceUserRepository, cache statsCache, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		users:     users,
		cache:     cache,
		cacheTTL:  cacheTTL,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

// List returns attendance records visible to the actor.
func (s *AttendanceService) List(ctx context.Context, actor *models.JWTClaims, filter models.AttendanceFilter) ([]models.AttendanceDetail, *models.Pagination, error) {
	filter.AcademyID = actor.AcademyID
	if !access.Can(actor.Role, access.ActionViewOthersRecords) {
		filter.UserID = actor.UserID
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create registers a single check-in.
func (s *AttendanceService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAttendanceRequest) (*models.Attendance, error) {
	if !access.Can(actor.Role, access.ActionCreateAttendance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot register attendance")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.ClassType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class type")
	}

	student, err := s.users.FindActiveInAcademy(ctx, req.UserID, actor.AcademyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	record := &models.Attendance{
		UserID:          student.ID,
		Date:            dayOf(req.Date),
		ClassType:       req.ClassType,
		ClassScheduleID: req.ClassScheduleID,
		Notes:           req.Notes,
		RegisteredByID:  actor.UserID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already registered for that day and class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register attendance")
	}

	s.invalidateStats(ctx, student.ID)
	return record, nil
}

// BulkCreate registers one class session for a group of students. Students
// outside the academy or already checked in are skipped, not failed.
func (s *AttendanceService) BulkCreate(ctx context.Context, actor *models.JWTClaims, req BulkAttendanceRequest) (*models.BulkAttendanceResult, error) {
	if !access.Can(actor.Role, access.ActionCreateAttendance) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot register attendance")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	if !req.ClassType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class type")
	}

	valid, err := s.users.FilterActiveIDsInAcademy(ctx, req.UserIDs, actor.AcademyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve students")
	}

	date := dayOf(req.Date)
	records := make([]models.Attendance, 0, len(valid))
	for _, userID := range valid {
		records = append(records, models.Attendance{
			UserID:         userID,
			Date:           date,
			ClassType:      req.ClassType,
			Notes:          req.Notes,
			RegisteredByID: actor.UserID,
		})
	}

	created, err := s.repo.BulkCreate(ctx, records)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register attendances")
	}

	for _, userID := range valid {
		s.invalidateStats(ctx, userID)
	}

	s.logger.Info("bulk attendance registered",
		zap.Int("requested", len(req.UserIDs)),
		zap.Int("created", created))
	return &models.BulkAttendanceResult{Created: created, Skipped: len(req.UserIDs) - created}, nil
}

// Delete removes a check-in.
func (s *AttendanceService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !access.Can(actor.Role, access.ActionDeleteAttendance) {
		return appErrors.Clone(appErrors.ErrForbidden, "role cannot delete attendance")
	}

	record, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	if record.UserAcademyID != actor.AcademyID {
		return appErrors.Clone(appErrors.ErrNotFound, "attendance not found")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance")
	}
	s.invalidateStats(ctx, record.UserID)
	return nil
}

// Stats computes a student's attendance statistics as of the given date.
func (s *AttendanceService) Stats(ctx context.Context, actor *models.JWTClaims, userID string, asOf time.Time) (*models.AttendanceStats, error) {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !access.CanViewUser(actor, target.ID, target.AcademyID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot view this student's records")
	}

	asOf = dayOf(asOf)
	key := statsCacheKey(userID, asOf)
	if s.cache != nil {
		var cached models.AttendanceStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		} else {
			s.metrics.RecordCacheLookup(false)
		}
	}

	stats, err := s.computeStats(ctx, userID, asOf)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *AttendanceService) computeStats(ctx context.Context, userID string, asOf time.Time) (*models.AttendanceStats, error) {
	total, err := s.repo.CountAll(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendances")
	}

	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)
	thisMonth, err := s.repo.CountBetween(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count month attendances")
	}

	histogram, err := s.repo.HistogramByType(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate class types")
	}
	// The histogram arrives ordered by count descending with a stable
	// class-type tie break, so the favorite is the first row.
	var favorite *models.ClassType
	if len(histogram) > 0 {
		favorite = &histogram[0].ClassType
	}

	dates, err := s.repo.RecentDistinctDates(ctx, userID, streakLookback)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance dates")
	}
	streak := currentStreak(dates, asOf)

	monthRecords, err := s.repo.ListRange(ctx, userID, monthStart, monthEnd)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load month attendances")
	}
	days := make([]models.AttendanceDay, 0, len(monthRecords))
	for _, record := range monthRecords {
		days = append(days, models.AttendanceDay{
			Date:      record.Date.Format("2006-01-02"),
			ClassType: record.ClassType,
		})
	}

	return &models.AttendanceStats{
		TotalAttendances:     total,
		ThisMonthAttendances: thisMonth,
		CurrentStreak:        streak,
		FavoriteClassType:    favorite,
		AttendancesByType:    histogram,
		AttendanceDates:      days,
	}, nil
}

// ExportHistory renders the student's full attendance history as CSV or PDF.
func (s *AttendanceService) ExportHistory(ctx context.Context, actor *models.JWTClaims, userID, format string) ([]byte, string, error) {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !access.CanViewUser(actor, target.ID, target.AcademyID) {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "cannot view this student's records")
	}

	records, err := s.repo.ListAll(ctx, userID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance history")
	}

	dataset := export.Dataset{Headers: []string{"Date", "Class Type", "Notes"}}
	for _, record := range records {
		notes := ""
		if record.Notes != nil {
			notes = *record.Notes
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":       record.Date.Format("2006-01-02"),
			"Class Type": string(record.ClassType),
			"Notes":      notes,
		})
	}

	switch format {
	case "csv":
		out, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return out, "text/csv", nil
	case "pdf":
		out, err := s.pdf.Render(dataset, fmt.Sprintf("Attendance History - %s", target.Name))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return out, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *AttendanceService) invalidateStats(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, fmt.Sprintf("stats:attendance:%s:*", userID)); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func statsCacheKey(userID string, asOf time.Time) string {
	return fmt.Sprintf("stats:attendance:%s:%s", userID, asOf.Format("2006-01-02"))
}

// currentStreak walks backward one calendar day at a time through the
// descending distinct-date list. A streak only counts as current when the
// latest attendance is today or yesterday relative to asOf.
func currentStreak(dates []time.Time, asOf time.Time) int {
	if len(dates) == 0 {
		return 0
	}
	latest := dayOf(dates[0])
	if !latest.Equal(asOf) && !latest.Equal(asOf.AddDate(0, 0, -1)) {
		return 0
	}
	streak := 1
	expected := latest.AddDate(0, 0, -1)
	for _, date := range dates[1:] {
		if !dayOf(date).Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// dayOf truncates a timestamp to day granularity in UTC.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
