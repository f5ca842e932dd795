package models

import "time"

// User is a registered account that owns chat sessions.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// StoredMessage is a chat message as persisted, with its session and position.
type StoredMessage struct {
	ID        string      `json:"id"`
	SessionID string      `json:"session_id"`
	Message   ChatMessage `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
}
