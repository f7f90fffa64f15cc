package audit

import "time"

// Action is the kind of administrative change recorded.
type Action string

const (
	ActionAdd    Action = "ADD"
	ActionChange Action = "CHANGE"
	ActionDelete Action = "DELETE"
)

// Entry records one administrative change.
type Entry struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user" db:"user_id"`
	Username   string    `json:"username" db:"username"`
	Action     Action    `json:"action" db:"action"`
	Model      string    `json:"model" db:"model"`
	ObjectID   string    `json:"object_id" db:"object_id"`
	ObjectRepr string    `json:"object_repr" db:"object_repr"`
	Time       time.Time `json:"action_time" db:"action_time"`
}
