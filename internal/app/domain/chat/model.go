// Package chat models support rooms between a user and staff.
package chat

import "time"

// Room is a support conversation opened by a user. Each user owns at most
// one room.
type Room struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user" db:"user_id"`
	Username  string    `json:"username,omitempty" db:"username"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is one chat line.
type Message struct {
	ID        int64     `json:"id" db:"id"`
	RoomID    int64     `json:"room" db:"room_id"`
	SenderID  int64     `json:"sender" db:"sender_id"`
	Sender    string    `json:"sender_username,omitempty" db:"sender_username"`
	Content   string    `json:"content" db:"content"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}
