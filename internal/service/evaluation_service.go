package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/bjj-academy-api/internal/access"
	"github.com/noah-isme/bjj-academy-api/internal/models"
	"github.com/noah-isme/bjj-academy-api/internal/repository"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
)

type evaluationTxRunner interface {
	Evaluate(ctx context.Context, fn func(store repository.EvaluationStore) error) error
}

type enrollmentLister interface {
	ListDetailByExam(ctx context.Context, examID string) ([]models.ExamStudentDetail, error)
}

// EvaluationInput is one candidate's verdict within a batch.
type EvaluationInput struct {
	EnrollmentID string            `json:"enrollment_id" validate:"required"`
	Result       models.ExamResult `json:"result" validate:"required"`
	Score        *int              `json:"score,omitempty" validate:"omitempty,min=0,max=100"`
	Feedback     *string           `json:"feedback,omitempty"`
}

// BulkEvaluationRequest carries the whole evaluation batch.
type BulkEvaluationRequest struct {
	Evaluations []EvaluationInput `json:"evaluations" validate:"required,min=1,dive"`
}

// EvaluationOutcome reports what happened to one enrollment.
type EvaluationOutcome struct {
	EnrollmentID string            `json:"enrollment_id"`
	UserID       string            `json:"user_id"`
	Result       models.ExamResult `json:"result"`
	Promoted     bool              `json:"promoted"`
}

// BulkEvaluationResult summarises a committed evaluation batch.
type BulkEvaluationResult struct {
	Outcomes   []EvaluationOutcome `json:"outcomes"`
	Approved   int                 `json:"approved"`
	Failed     int                 `json:"failed"`
	NoShow     int                 `json:"no_show"`
	ExamStatus models.ExamStatus   `json:"exam_status"`
}

// EvaluationService runs the bulk exam evaluation state machine.
type EvaluationService struct {
	exams       examReader
	enrollments enrollmentLister
	tx          evaluationTxRunner
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEvaluationService constructs EvaluationService. Metrics may be nil.
func NewEvaluationService(exams examReader, enrollments enrollmentLister, tx evaluationTxRunner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EvaluationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EvaluationService{exams: exams, enrollments: enrollments, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// EvaluateBulk applies a batch of verdicts to an exam's enrollments in one
// transaction. Approved candidates get a promotion ledger entry and their rank
// set to the exam's destination belt with zero stripes. After the batch the
// exam flips to COMPLETADO when no pending enrollments remain, EN_CURSO
// otherwise.
//
// Enrollments that already carry a terminal result are rejected with a
// Conflict before anything is written; re-evaluation would overwrite the
// verdict and double-append the promotion ledger.
func (s *EvaluationService) EvaluateBulk(ctx context.Context, actor *models.JWTClaims, examID string, req BulkEvaluationRequest) (*BulkEvaluationResult, error) {
	if !access.Can(actor.Role, access.ActionEvaluateExam) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot evaluate exams")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evaluation payload")
	}
	for _, eval := range req.Evaluations {
		if !eval.Result.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("result %q is not a valid verdict", eval.Result))
		}
	}

	exam, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	if exam.AcademyID != actor.AcademyID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
	}
	if !exam.Status.AcceptsEvaluations() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "exam is not accepting evaluations")
	}

	enrollments, err := s.enrollments.ListDetailByExam(ctx, examID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	byID := make(map[string]models.ExamStudentDetail, len(enrollments))
	for _, enrollment := range enrollments {
		byID[enrollment.ID] = enrollment
	}

	var unknown []string
	seen := make(map[string]bool, len(req.Evaluations))
	for _, eval := range req.Evaluations {
		if _, ok := byID[eval.EnrollmentID]; !ok {
			unknown = append(unknown, eval.EnrollmentID)
			continue
		}
		if seen[eval.EnrollmentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollment %s appears twice in the batch", eval.EnrollmentID))
		}
		seen[eval.EnrollmentID] = true
	}
	if len(unknown) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("enrollments do not belong to this exam: %s", strings.Join(unknown, ", ")))
	}
	for _, eval := range req.Evaluations {
		if byID[eval.EnrollmentID].Result != models.ExamResultPending {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("enrollment %s has already been evaluated", eval.EnrollmentID))
		}
	}

	result := &BulkEvaluationResult{Outcomes: make([]EvaluationOutcome, 0, len(req.Evaluations))}
	now := time.Now().UTC()

	err = s.tx.Evaluate(ctx, func(store repository.EvaluationStore) error {
		for _, eval := range req.Evaluations {
			enrollment := byID[eval.EnrollmentID]

			if err := store.UpdateEnrollmentResult(ctx, eval.EnrollmentID, eval.Result, eval.Score, eval.Feedback, now); err != nil {
				return err
			}

			outcome := EvaluationOutcome{EnrollmentID: eval.EnrollmentID, UserID: enrollment.UserID, Result: eval.Result}
			switch eval.Result {
			case models.ExamResultApproved:
				current := models.Rank{Belt: enrollment.StudentBelt, Stripe: enrollment.StudentStripe}
				promoted := current.PromoteTo(exam.BeltTo)
				promotion := &models.Promotion{
					StudentID:    enrollment.UserID,
					FromBelt:     current.Belt,
					FromStripe:   current.Stripe,
					ToBelt:       promoted.Belt,
					ToStripe:     promoted.Stripe,
					PromotedByID: actor.UserID,
					ExamID:       &exam.ID,
					Notes:        promotionNotes(eval),
					PromotedAt:   now,
				}
				if err := store.InsertPromotion(ctx, promotion); err != nil {
					return err
				}
				if err := store.UpdateUserRank(ctx, enrollment.UserID, promoted); err != nil {
					return err
				}
				outcome.Promoted = true
				result.Approved++
			case models.ExamResultFailed:
				result.Failed++
			case models.ExamResultNoShow:
				result.NoShow++
			}
			result.Outcomes = append(result.Outcomes, outcome)
		}

		pending, err := store.CountPendingEnrollments(ctx, examID)
		if err != nil {
			return err
		}
		status := models.ExamStatusInProgress
		if pending == 0 {
			status = models.ExamStatusCompleted
		}
		if err := store.UpdateExamStatus(ctx, examID, status); err != nil {
			return err
		}
		result.ExamStatus = status
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "evaluation transaction failed")
	}

	for _, outcome := range result.Outcomes {
		s.metrics.RecordEvaluation(string(outcome.Result))
		if outcome.Promoted {
			s.metrics.RecordPromotion()
		}
	}

	s.logger.Info("exam evaluated",
		zap.String("exam_id", examID),
		zap.Int("approved", result.Approved),
		zap.Int("failed", result.Failed),
		zap.Int("no_show", result.NoShow),
		zap.String("exam_status", string(result.ExamStatus)))
	return result, nil
}

// promotionNotes prefers the evaluator's feedback over the generated note.
func promotionNotes(eval EvaluationInput) *string {
	if eval.Feedback != nil && *eval.Feedback != "" {
		return eval.Feedback
	}
	note := "aprobado en examen"
	if eval.Score != nil {
		note = fmt.Sprintf("aprobado en examen con %d puntos", *eval.Score)
	}
	return &note
}
