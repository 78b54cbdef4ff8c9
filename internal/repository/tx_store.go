package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

// EvaluationStore is the transaction-scoped write surface for bulk exam
// evaluation. All methods run against the same transaction; the caller's
// function either commits everything or nothing.
type EvaluationStore interface {
	UpdateEnrollmentResult(ctx context.Context, enrollmentID string, result models.ExamResult, score *int, feedback *string, evaluatedAt time.Time) error
	InsertPromotion(ctx context.Context, promotion *models.Promotion) error
	UpdateUserRank(ctx context.Context, userID string, rank models.Rank) error
	CountPendingEnrollments(ctx context.Context, examID string) (int, error)
	UpdateExamStatus(ctx context.Context, examID string, status models.ExamStatus) error
}

// PromotionStore is the transaction-scoped write surface for manual promotion
// creation and reversal.
type PromotionStore interface {
	InsertPromotion(ctx context.Context, promotion *models.Promotion) error
	UpdateUserRank(ctx context.Context, userID string, rank models.Rank) error
	DeletePromotion(ctx context.Context, id string) error
}

// TxRunner opens transactions exposing the evaluation and promotion stores.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner constructs a TxRunner.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// Evaluate runs fn against a transaction-scoped EvaluationStore.
func (r *TxRunner) Evaluate(ctx context.Context, fn func(store EvaluationStore) error) error {
	return Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// Promote runs fn against a transaction-scoped PromotionStore.
func (r *TxRunner) Promote(ctx context.Context, fn func(store PromotionStore) error) error {
	return Transact(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

type txStore struct {
	tx *sqlx.Tx
}

func (s *txStore) UpdateEnrollmentResult(ctx context.Context, enrollmentID string, result models.ExamResult, score *int, feedback *string, evaluatedAt time.Time) error {
	const query = `UPDATE exam_students SET result = $2, score = $3, feedback = $4, evaluated_at = $5 WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, enrollmentID, result, score, feedback, evaluatedAt); err != nil {
		return fmt.Errorf("update enrollment result: %w", err)
	}
	return nil
}

func (s *txStore) InsertPromotion(ctx context.Context, promotion *models.Promotion) error {
	if promotion.ID == "" {
		promotion.ID = uuid.NewString()
	}
	if promotion.PromotedAt.IsZero() {
		promotion.PromotedAt = time.Now().UTC()
	}
	const query = `INSERT INTO belt_promotions (id, student_id, from_belt, from_stripe, to_belt, to_stripe, promoted_by_id, exam_id, notes, promoted_at)
        VALUES (:id, :student_id, :from_belt, :from_stripe, :to_belt, :to_stripe, :promoted_by_id, :exam_id, :notes, :promoted_at)`
	if _, err := s.tx.NamedExecContext(ctx, query, promotion); err != nil {
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func (s *txStore) UpdateUserRank(ctx context.Context, userID string, rank models.Rank) error {
	const query = `UPDATE users SET belt = $2, stripe = $3, updated_at = NOW() WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, userID, rank.Belt, rank.Stripe); err != nil {
		return fmt.Errorf("update user rank: %w", err)
	}
	return nil
}

func (s *txStore) CountPendingEnrollments(ctx context.Context, examID string) (int, error) {
	const query = `SELECT COUNT(*) FROM exam_students WHERE exam_id = $1 AND result = $2`
	var count int
	if err := s.tx.GetContext(ctx, &count, query, examID, models.ExamResultPending); err != nil {
		return 0, fmt.Errorf("count pending enrollments: %w", err)
	}
	return count, nil
}

func (s *txStore) UpdateExamStatus(ctx context.Context, examID string, status models.ExamStatus) error {
	const query = `UPDATE exams SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, examID, status); err != nil {
		return fmt.Errorf("update exam status: %w", err)
	}
	return nil
}

func (s *txStore) DeletePromotion(ctx context.Context, id string) error {
	const query = `DELETE FROM belt_promotions WHERE id = $1`
	if _, err := s.tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}
	return nil
}
