package auth

import (
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.UserRole
	// JTI ties the token to a Redis session; generated when empty.
	JTI string
}

// AccessTokenClaims represents the typed JWT issued to clients. The user id
// travels in the standard sub claim.
type AccessTokenClaims struct {
	Email string         `json:"email"`
	Role  enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject into a uuid.
func (c *AccessTokenClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}
