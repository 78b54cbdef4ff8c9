package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/access"
	"github.com/noah-isme/bjj-academy-api/internal/models"
	"github.com/noah-isme/bjj-academy-api/internal/repository"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
)

type examReader interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
}

type enrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.ExamStudent, capacity *int) error
	FindByExamAndUser(ctx context.Context, examID, userID string) (*models.ExamStudent, error)
	ListDetailByExam(ctx context.Context, examID string) ([]models.ExamStudentDetail, error)
	Delete(ctx context.Context, id string) error
}

type academyUserReader interface {
	FindActiveInAcademy(ctx context.Context, id, academyID string) (*models.User, error)
}

type attendanceCounter interface {
	CountAll(ctx context.Context, userID string) (int, error)
}

type videoProgressReader interface {
	CountCompleted(ctx context.Context, userID string) (int, error)
}

// EnrollRequest carries the enrollment payload.
type EnrollRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// ExamStudentService manages exam enrollments.
type ExamStudentService struct {
	exams       examReader
	enrollments enrollmentRepository
	users       academyUserReader
	attendance  attendanceCounter
	videos      videoProgressReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewExamStudentService constructs ExamStudentService.
func NewExamStudentService(exams examReader, enrollments enrollmentRepository, users academyUserReader, attendance attendanceCounter, videos videoProgressReader, validate *validator.Validate, logger *zap.Logger) *ExamStudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamStudentService{
		exams:       exams,
		enrollments: enrollments,
		users:       users,
		attendance:  attendance,
		videos:      videos,
		validator:   validate,
		logger:      logger,
	}
}

// Enroll registers a student for an exam. Only students currently holding the
// exam's origin belt are eligible; a higher rank is not.
func (s *ExamStudentService) Enroll(ctx context.Context, actor *models.JWTClaims, examID string, req EnrollRequest) (*models.ExamStudent, error) {
	if !access.Can(actor.Role, access.ActionEnrollExamStudent) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot enroll students")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	exam, err := s.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	if !exam.Status.AcceptsEnrollments() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "exam is not accepting enrollments")
	}

	student, err := s.users.FindActiveInAcademy(ctx, req.UserID, actor.AcademyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Belt != exam.BeltFrom {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student's belt does not match the exam's origin belt")
	}

	enrollment := &models.ExamStudent{
		ExamID: exam.ID,
		UserID: student.ID,
		Result: models.ExamResultPending,
	}
	// The capacity re-check and uniqueness constraint fire inside the insert
	// transaction, so a stale earlier read cannot overbook under race.
	if err := s.enrollments.Create(ctx, enrollment, exam.MaxStudents); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, appErrors.Clone(appErrors.ErrConflict, "exam capacity reached")
		case errors.Is(err, repository.ErrDuplicateEnrollment):
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
		}
	}

	s.logger.Info("student enrolled",
		zap.String("exam_id", exam.ID),
		zap.String("user_id", student.ID))
	return enrollment, nil
}

// Remove unenrolls a pending student from a not-yet-completed exam.
func (s *ExamStudentService) Remove(ctx context.Context, actor *models.JWTClaims, examID, userID string) error {
	if !access.Can(actor.Role, access.ActionRemoveExamStudent) {
		return appErrors.Clone(appErrors.ErrForbidden, "role cannot remove enrollments")
	}

	exam, err := s.loadExam(ctx, actor, examID)
	if err != nil {
		return err
	}
	if exam.Status == models.ExamStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "completed exams cannot be modified")
	}

	enrollment, err := s.enrollments.FindByExamAndUser(ctx, examID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Result != models.ExamResultPending {
		return appErrors.Clone(appErrors.ErrConflict, "evaluated enrollments cannot be removed")
	}

	if err := s.enrollments.Delete(ctx, enrollment.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove enrollment")
	}
	return nil
}

// ListWithRequirements returns the exam's enrollments annotated with each
// student's progress against the exam's attendance and video thresholds. The
// annotations are a decision aid for evaluators; they block nothing.
func (s *ExamStudentService) ListWithRequirements(ctx context.Context, actor *models.JWTClaims, examID string) ([]models.ExamStudentWithRequirements, error) {
	exam, err := s.loadExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.enrollments.ListDetailByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}

	out := make([]models.ExamStudentWithRequirements, 0, len(enrollments))
	for _, enrollment := range enrollments {
		row := models.ExamStudentWithRequirements{ExamStudentDetail: enrollment}

		attendances, err := s.attendance.CountAll(ctx, enrollment.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendances")
		}
		row.Requirements.Attendances = requirementStatus(attendances, exam.MinAttendances)

		videos, err := s.videos.CountCompleted(ctx, enrollment.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed videos")
		}
		row.Requirements.Videos = requirementStatus(videos, exam.MinVideosCompleted)

		out = append(out, row)
	}
	return out, nil
}

func (s *ExamStudentService) loadExam(ctx context.Context, actor *models.JWTClaims, id string) (*models.Exam, error) {
	exam, err := s.exams.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.AcademyID != actor.AcademyID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	return exam, nil
}

// requirementStatus marks an unset threshold as trivially met.
func requirementStatus(current int, required *int) models.RequirementStatus {
	status := models.RequirementStatus{Current: current, Required: required, Met: true}
	if required != nil {
		status.Met = current >= *required
	}
	return status
}
