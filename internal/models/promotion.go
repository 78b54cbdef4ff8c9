package models

import "time"

// Promotion is an append-only ledger entry recording a rank change. The only
// mutation besides creation is reversal, which restores the from rank and
// deletes the entry.
type Promotion struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	FromBelt     Belt      `db:"from_belt" json:"from_belt"`
	FromStripe   Stripe    `db:"from_stripe" json:"from_stripe"`
	ToBelt       Belt      `db:"to_belt" json:"to_belt"`
	ToStripe     Stripe    `db:"to_stripe" json:"to_stripe"`
	PromotedByID string    `db:"promoted_by_id" json:"promoted_by_id"`
	ExamID       *string   `db:"exam_id" json:"exam_id,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	PromotedAt   time.Time `db:"promoted_at" json:"promoted_at"`
}

// PromotionDetail extends the ledger entry with display metadata.
type PromotionDetail struct {
	Promotion
	StudentName    string `db:"student_name" json:"student_name"`
	StudentAcademy string `db:"student_academy" json:"-"`
	PromotedByName string `db:"promoted_by_name" json:"promoted_by_name"`
}

// PromotionFilter scopes ledger listing queries.
type PromotionFilter struct {
	StudentID string
	AcademyID string
	Page      int
	PageSize  int
}
