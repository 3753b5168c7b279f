package auth

import (
	"time"

	"github.com/vaultarc/archive-backend/pkg/db/models"
)

// LoginInput carries one authentication attempt.
type LoginInput struct {
	Username  string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is the issued token plus the authenticated user.
type LoginResult struct {
	AccessToken string
	ExpiresAt   time.Time
	User        *models.User
}
