package auth

import (
	"time"

	"github.com/bozorline/shop-backend/pkg/db/models"
	"github.com/bozorline/shop-backend/pkg/enums"
	"github.com/google/uuid"
)

// RegisterInput carries a new account request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// LoginInput identifies an account by username or email.
type LoginInput struct {
	Login    string
	Password string
}

// UserDTO is the public account shape returned by auth endpoints.
type UserDTO struct {
	ID         uuid.UUID      `json:"id"`
	Username   string         `json:"username"`
	Email      string         `json:"email"`
	Role       enums.UserRole `json:"role"`
	IsVerified bool           `json:"is_verified"`
	CreatedAt  time.Time      `json:"created_at"`
}

// LoginResult bundles the minted token with the account it belongs to.
type LoginResult struct {
	AccessToken string  `json:"access_token"`
	User        UserDTO `json:"user"`
}

func toUserDTO(user *models.User) UserDTO {
	return UserDTO{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt,
	}
}
