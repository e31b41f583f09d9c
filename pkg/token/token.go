package token

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set member role
type RoleType string

const (
	// RoleBuyer marketplace buyer
	RoleBuyer RoleType = "buyer"
	// RoleSeller marketplace seller
	RoleSeller RoleType = "seller"
	// RoleRider delivery rider
	RoleRider RoleType = "rider"
)

// Claims structure for custom claims in JWT
type Claims struct {
	MemberID string `json:"user_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

var (
	// JWTSecret key for JWT signing and validation, CHAT_JWT_SECRET overrides
	JWTSecret       = []byte(secretFromEnv())
	tokenExpiration = 60 * time.Minute

	// ErrInvalidToken token can't be parsed or is not valid
	ErrInvalidToken = errors.New("invalid token")
)

func secretFromEnv() string {
	if s := os.Getenv("CHAT_JWT_SECRET"); s != "" {
		return s
	}
	return "secure_secret_key"
}

// GenerateJWT generates a JWT token
func GenerateJWT(memberID string, role RoleType, issuer string) (string, error) {
	claims := Claims{
		MemberID: memberID,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(JWTSecret)
}

// ParseJWT parses and validates a JWT and extracts the Claims
func ParseJWT(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(TrimBearer(tokenStr), &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// PeekMemberID read user_id without verifying the signature.
// Clients never hold the signing secret, the server still verifies on connect.
func PeekMemberID(tokenStr string) (string, error) {
	claims, err := peekClaims(tokenStr)
	if err != nil {
		return "", err
	}
	if claims.MemberID == "" {
		return "", ErrInvalidToken
	}
	return claims.MemberID, nil
}

// PeekExpired report whether exp is already in the past, signature not verified.
// A token without exp never expires.
func PeekExpired(tokenStr string) (bool, error) {
	claims, err := peekClaims(tokenStr)
	if err != nil {
		return false, err
	}
	if claims.ExpiresAt == nil {
		return false, nil
	}
	return !claims.ExpiresAt.After(time.Now()), nil
}

func peekClaims(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(TrimBearer(tokenStr), claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// TrimBearer strip the "Bearer " prefix if present
func TrimBearer(t string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(t), "Bearer "))
}
