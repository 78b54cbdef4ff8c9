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

type promotionRepository interface {
	FindDetailByID(ctx context.Context, id string) (*models.PromotionDetail, error)
	List(ctx context.Context, filter models.PromotionFilter) ([]models.PromotionDetail, int, error)
}

type promotionTxRunner interface {
	Promote(ctx context.Context, fn func(store repository.PromotionStore) error) error
}

// CreatePromotionRequest is the manual promotion payload. Unlike exam
// approvals the instructor picks the destination rank freely, stripes
// included.
type CreatePromotionRequest struct {
	StudentID string        `json:"student_id" validate:"required"`
	ToBelt    models.Belt   `json:"to_belt" validate:"required"`
	ToStripe  models.Stripe `json:"to_stripe"`
	Notes     *string       `json:"notes,omitempty"`
}

// PromotionService manages the belt promotion ledger.
type PromotionService struct {
	repo      promotionRepository
	users     academyUserReader
	tx        promotionTxRunner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPromotionService constructs PromotionService. Metrics may be nil.
func NewPromotionService(repo promotionRepository, users academyUserReader, tx promotionTxRunner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *PromotionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{repo: repo, users: users, tx: tx, metrics: metrics, validator: validate, logger: logger}
}

// List returns ledger entries visible to the actor. Students only see their
// own history; staff see the whole academy.
func (s *PromotionService) List(ctx context.Context, actor *models.JWTClaims, filter models.PromotionFilter) ([]models.PromotionDetail, *models.Pagination, error) {
	filter.AcademyID = actor.AcademyID
	if !access.Can(actor.Role, access.ActionViewOthersRecords) {
		filter.StudentID = actor.UserID
	} else if filter.StudentID == "" && actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}

	promotions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list promotions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return promotions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one ledger entry, applying the same visibility rules as List.
func (s *PromotionService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.PromotionDetail, error) {
	promotion, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "promotion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promotion")
	}
	if !access.CanViewUser(actor, promotion.StudentID, promotion.StudentAcademy) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "promotion not found")
	}
	return promotion, nil
}

// Create appends a manual promotion and updates the student's rank in one
// transaction. No eligibility checks apply beyond role and tenant.
func (s *PromotionService) Create(ctx context.Context, actor *models.JWTClaims, req CreatePromotionRequest) (*models.Promotion, error) {
	if !access.Can(actor.Role, access.ActionCreatePromotion) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot create promotions")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid promotion payload")
	}
	if !req.ToBelt.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown belt")
	}
	if !req.ToStripe.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "stripe must be between 0 and 4")
	}

	student, err := s.users.FindActiveInAcademy(ctx, req.StudentID, actor.AcademyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	promotion := &models.Promotion{
		StudentID:    student.ID,
		FromBelt:     student.Belt,
		FromStripe:   student.Stripe,
		ToBelt:       req.ToBelt,
		ToStripe:     req.ToStripe,
		PromotedByID: actor.UserID,
		Notes:        req.Notes,
	}
	err = s.tx.Promote(ctx, func(store repository.PromotionStore) error {
		if err := store.InsertPromotion(ctx, promotion); err != nil {
			return err
		}
		return store.UpdateUserRank(ctx, student.ID, models.Rank{Belt: req.ToBelt, Stripe: req.ToStripe})
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "promotion transaction failed")
	}
	s.metrics.RecordPromotion()

	s.logger.Info("manual promotion created",
		zap.String("student_id", student.ID),
		zap.String("to_belt", string(req.ToBelt)))
	return promotion, nil
}

// Reverse undoes a promotion: the student's rank is restored to the entry's
// from values and the ledger entry is deleted, atomically.
func (s *PromotionService) Reverse(ctx context.Context, actor *models.JWTClaims, id string) error {
	if !access.Can(actor.Role, access.ActionReversePromotion) {
		return appErrors.Clone(appErrors.ErrForbidden, "only admins may reverse promotions")
	}

	promotion, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "promotion not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load promotion")
	}
	if promotion.StudentAcademy != actor.AcademyID {
		return appErrors.Clone(appErrors.ErrForbidden, "promotion belongs to another academy")
	}

	err = s.tx.Promote(ctx, func(store repository.PromotionStore) error {
		restored := models.Rank{Belt: promotion.FromBelt, Stripe: promotion.FromStripe}
		if err := store.UpdateUserRank(ctx, promotion.StudentID, restored); err != nil {
			return err
		}
		return store.DeletePromotion(ctx, promotion.ID)
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reversal transaction failed")
	}

	s.logger.Info("promotion reversed",
		zap.String("promotion_id", promotion.ID),
		zap.String("student_id", promotion.StudentID))
	return nil
}
