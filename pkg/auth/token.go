package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// clockSkew tolerates drift between the handheld clients and the API host.
const clockSkew = 30 * time.Second

// ErrPickerDepartment is returned when minting a picker token without a department.
var ErrPickerDepartment = errors.New("picker tokens require a department")

// MintAccessToken issues a signed operator JWT valid for cfg.ExpirationMinutes.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload OperatorTokenPayload) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	username := strings.TrimSpace(payload.Username)
	if err := checkIdentity(username, payload.Role, payload.Department); err != nil {
		return "", err
	}
	if payload.Role == enums.OperatorRolePicker && payload.Department == nil {
		return "", ErrPickerDepartment
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := OperatorClaims{
		Username:   username,
		Role:       payload.Role,
		Department: payload.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry and returns typed claims.
// Tokens without an exp claim are rejected.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*OperatorClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &OperatorClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	if err != nil {
		return nil, err
	}
	if err := checkIdentity(claims.Username, claims.Role, claims.Department); err != nil {
		return nil, fmt.Errorf("token %w", err)
	}
	return claims, nil
}

func checkSigningConfig(cfg config.JWTConfig) error {
	if cfg.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return fmt.Errorf("jwt issuer is required")
	}
	return nil
}

func checkIdentity(username string, role enums.OperatorRole, dept *enums.Department) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("missing username")
	}
	if !role.IsValid() {
		return fmt.Errorf("invalid operator role %q", role)
	}
	if dept != nil && !dept.IsValid() {
		return fmt.Errorf("invalid department %q", *dept)
	}
	return nil
}
