package models

import "time"

// VideoProgress tracks a student's progress through a library video. Only the
// completed count is consumed here, for exam requirement display; the video
// library itself lives behind the streaming collaborator.
type VideoProgress struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	VideoID    string    `db:"video_id" json:"video_id"`
	Percentage int       `db:"percentage" json:"percentage"`
	Completed  bool      `db:"completed" json:"completed"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
