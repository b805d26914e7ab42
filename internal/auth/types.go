package auth

import "time"

type Role string

const (
	RoleUser    Role = "user"
	RoleService Role = "service"
	RoleAdmin   Role = "admin"
)

type Claims struct {
	Sub       string `json:"sub"` // user ID / service name
	Roles     []Role `json:"roles"`
	TokenID   string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
