package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	ShopID *uuid.UUID
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients. Sellers carry
// the shop they operate; buyers have no shop claim.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	ShopID *uuid.UUID      `json:"shop_id,omitempty"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
