package auth

import (
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
)

// OperatorTokenPayload captures the data available when minting an operator JWT.
type OperatorTokenPayload struct {
	Username   string
	Role       enums.OperatorRole
	Department *enums.Department
	JTI        string
}

// OperatorClaims represents the typed JWT carried by warehouse clients.
type OperatorClaims struct {
	Username   string             `json:"username"`
	Role       enums.OperatorRole `json:"role"`
	Department *enums.Department  `json:"department,omitempty"`
	jwt.RegisteredClaims
}
