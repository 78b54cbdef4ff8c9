package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// VideoProgressRepository reads curriculum video completion counters used by
// exam requirement checks.
type VideoProgressRepository struct {
	db *sqlx.DB
}

// NewVideoProgressRepository constructs the repository.
func NewVideoProgressRepository(db *sqlx.DB) *VideoProgressRepository {
	return &VideoProgressRepository{db: db}
}

// CountCompleted returns the number of curriculum videos the user has
// finished watching.
func (r *VideoProgressRepository) CountCompleted(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM video_progress WHERE user_id = $1 AND completed = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count completed videos: %w", err)
	}
	return count, nil
}
