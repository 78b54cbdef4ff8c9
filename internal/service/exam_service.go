package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/access"
	"github.com/noah-isme/bjj-academy-api/internal/models"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
)

type examRepository interface {
	FindByID(ctx context.Context, id string) (*models.Exam, error)
	List(ctx context.Context, academyID string, filter models.ExamFilter) ([]models.ExamDetail, int, error)
	Create(ctx context.Context, exam *models.Exam) error
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id string) error
}

// CreateExamRequest describes the exam creation payload.
type CreateExamRequest struct {
	Title              string      `json:"title" validate:"required,min=3"`
	Date               time.Time   `json:"date" validate:"required"`
	Location           *string     `json:"location,omitempty"`
	Description        *string     `json:"description,omitempty"`
	BeltFrom           models.Belt `json:"belt_from" validate:"required"`
	BeltTo             models.Belt `json:"belt_to" validate:"required"`
	MaxStudents        *int        `json:"max_students,omitempty" validate:"omitempty,min=1"`
	ExamFee            *float64    `json:"exam_fee,omitempty" validate:"omitempty,min=0"`
	MinAttendances     *int        `json:"min_attendances,omitempty" validate:"omitempty,min=0"`
	MinVideosCompleted *int        `json:"min_videos_completed,omitempty" validate:"omitempty,min=0"`
}

// UpdateExamRequest describes the mutable exam fields. Nil fields are left
// untouched.
type UpdateExamRequest struct {
	Title              *string            `json:"title,omitempty" validate:"omitempty,min=3"`
	Date               *time.Time         `json:"date,omitempty"`
	Location           *string            `json:"location,omitempty"`
	Description        *string            `json:"description,omitempty"`
	MaxStudents        *int               `json:"max_students,omitempty" validate:"omitempty,min=1"`
	ExamFee            *float64           `json:"exam_fee,omitempty" validate:"omitempty,min=0"`
	MinAttendances     *int               `json:"min_attendances,omitempty" validate:"omitempty,min=0"`
	MinVideosCompleted *int               `json:"min_videos_completed,omitempty" validate:"omitempty,min=0"`
	Status             *models.ExamStatus `json:"status,omitempty"`
}

// ExamService orchestrates exam lifecycle workflows.
type ExamService struct {
	repo      examRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs ExamService.
func NewExamService(repo examRepository, validate *validator.Validate, logger *zap.Logger) *ExamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{repo: repo, validator: validate, logger: logger}
}

// List returns the academy's exams with pagination metadata.
func (s *ExamService) List(ctx context.Context, actor *models.JWTClaims, filter models.ExamFilter) ([]models.ExamDetail, *models.Pagination, error) {
	exams, total, err := s.repo.List(ctx, actor.AcademyID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exams")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return exams, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one exam scoped to the actor's academy.
func (s *ExamService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Exam, error) {
	return s.loadExam(ctx, actor, id)
}

// Create schedules a new exam for the actor's academy.
func (s *ExamService) Create(ctx context.Context, actor *models.JWTClaims, req CreateExamRequest) (*models.Exam, error) {
	if !access.Can(actor.Role, access.ActionCreateExam) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot create exams")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	if !req.BeltFrom.Valid() || !req.BeltTo.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown belt")
	}
	if !req.BeltTo.Outranks(req.BeltFrom) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "destination belt must outrank origin belt")
	}

	exam := &models.Exam{
		Title:              req.Title,
		Date:               req.Date,
		Location:           req.Location,
		Description:        req.Description,
		BeltFrom:           req.BeltFrom,
		BeltTo:             req.BeltTo,
		MaxStudents:        req.MaxStudents,
		ExamFee:            req.ExamFee,
		MinAttendances:     req.MinAttendances,
		MinVideosCompleted: req.MinVideosCompleted,
		AcademyID:          actor.AcademyID,
		Status:             models.ExamStatusScheduled,
	}
	if err := s.repo.Create(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	s.logger.Info("exam created", zap.String("exam_id", exam.ID), zap.String("academy_id", exam.AcademyID))
	return exam, nil
}

// Update edits a scheduled or in-progress exam. Completed exams are immutable
// and cancelled exams accept no further changes.
func (s *ExamService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateExamRequest) (*models.Exam, error) {
	if !access.Can(actor.Role, access.ActionUpdateExam) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot update exams")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}

	exam, err := s.loadExam(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if exam.Status == models.ExamStatusCompleted || exam.Status == models.ExamStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "exam can no longer be modified")
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Date != nil {
		exam.Date = *req.Date
	}
	if req.Location != nil {
		exam.Location = req.Location
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.MaxStudents != nil {
		exam.MaxStudents = req.MaxStudents
	}
	if req.ExamFee != nil {
		exam.ExamFee = req.ExamFee
	}
	if req.MinAttendances != nil {
		exam.MinAttendances = req.MinAttendances
	}
	if req.MinVideosCompleted != nil {
		exam.MinVideosCompleted = req.MinVideosCompleted
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown exam status")
		}
		exam.Status = *req.Status
	}

	if err := s.repo.Update(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update exam")
	}
	return exam, nil
}

// Delete removes an exam. Completed exams keep their history and cannot be
// deleted.
func (s *ExamService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !access.Can(actor.Role, access.ActionDeleteExam) {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may delete exams")
	}
	exam, err := s.loadExam(ctx, actor, id)
	if err != nil {
		return err
	}
	if exam.Status == models.ExamStatusCompleted {
		return appErrors.Clone(appErrors.ErrConflict, "completed exams cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete exam")
	}
	s.logger.Info("exam deleted", zap.String("exam_id", id))
	return nil
}

// loadExam fetches an exam and hides entities from other academies behind
// NotFound.
func (s *ExamService) loadExam(ctx context.Context, actor *models.JWTClaims, id string) (*models.Exam, error) {
	exam, err := s.repo.FindByID(ctx, id)
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
