// Package auth issues and verifies ES256 access and refresh tokens.
package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/EduShopX/edushop/internal/app/domain/account"
)

// TokenType separates access from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims represents the JWT payload.
type Claims struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsStaff   bool      `json:"is_staff"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller derived from access claims.
type Principal struct {
	UserID  int64
	Role    account.Role
	IsStaff bool
}

func (p Principal) IsAdmin() bool   { return p.IsStaff }
func (p Principal) IsTeacher() bool { return p.Role == account.RoleTeacher }
func (p Principal) IsStudent() bool { return p.Role == account.RoleStudent }

// IDString formats the user id for log fields.
func (p Principal) IDString() string { return strconv.FormatInt(p.UserID, 10) }

// Principal converts claims into the caller identity.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: account.Role(c.Role), IsStaff: c.IsStaff}
}
