package shortlink

import "time"

// CodeLength is the number of hex characters in a generated code.
const CodeLength = 8

// TargetType names the kind of object a link points at.
type TargetType string

const (
	TargetCourse TargetType = "course"
	TargetBook   TargetType = "book"
)

// Link maps a short code to a course or book.
type Link struct {
	ID         int64      `json:"id" db:"id"`
	Code       string     `json:"code" db:"code"`
	TargetType TargetType `json:"model" db:"target_type"`
	TargetID   int64      `json:"object_id" db:"target_id"`
	Clicks     int64      `json:"clicks" db:"clicks"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
