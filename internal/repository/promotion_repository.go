package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/bjj-academy-api/internal/models"
)

// PromotionRepository reads the belt promotion ledger. Writes go through the
// transactional stores so ledger appends and rank updates stay atomic.
type PromotionRepository struct {
	db *sqlx.DB
}

// NewPromotionRepository constructs the repository.
func NewPromotionRepository(db *sqlx.DB) *PromotionRepository {
	return &PromotionRepository{db: db}
}

// FindDetailByID returns a ledger entry with student metadata.
func (r *PromotionRepository) FindDetailByID(ctx context.Context, id string) (*models.PromotionDetail, error) {
	const query = `SELECT p.id, p.student_id, p.from_belt, p.from_stripe, p.to_belt, p.to_stripe,
        p.promoted_by_id, p.exam_id, p.notes, p.promoted_at,
        s.name AS student_name, s.academy_id AS student_academy, COALESCE(pb.name, '') AS promoted_by_name
        FROM belt_promotions p
        JOIN users s ON s.id = p.student_id
        LEFT JOIN users pb ON pb.id = p.promoted_by_id
        WHERE p.id = $1`
	var detail models.PromotionDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns ledger entries newest first, scoped to an academy.
func (r *PromotionRepository) List(ctx context.Context, filter models.PromotionFilter) ([]models.PromotionDetail, int, error) {
	base := `FROM belt_promotions p
JOIN users s ON s.id = p.student_id
LEFT JOIN users pb ON pb.id = p.promoted_by_id`
	conditions := []string{"s.academy_id = $1"}
	args := []interface{}{filter.AcademyID}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
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

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.from_belt, p.from_stripe, p.to_belt, p.to_stripe,
        p.promoted_by_id, p.exam_id, p.notes, p.promoted_at,
        s.name AS student_name, s.academy_id AS student_academy, COALESCE(pb.name, '') AS promoted_by_name
        %s ORDER BY p.promoted_at DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var promotions []models.PromotionDetail
	if err := r.db.SelectContext(ctx, &promotions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count promotions: %w", err)
	}
	return promotions, total, nil
}
