// Package storage defines the persistence interface for users and chat history.
package storage

import (
	"context"

	"github.com/hyperjump/webrag/internal/models"
)

// Storage defines user and chat-history persistence operations.
type Storage interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Chat history operations
	SaveMessage(ctx context.Context, sessionID string, msg models.ChatMessage) error
	History(ctx context.Context, sessionID string, limit int) ([]models.StoredMessage, error)
	ClearHistory(ctx context.Context, sessionID string) error

	// Stats
	CountMessages(ctx context.Context, sessionID string) (int64, error)

	Close() error
}
