// Package services provides external service integrations and technical concerns like channel gateways and tokens
package services

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/utils"
	"github.com/golang-jwt/jwt/v5"
)

// Token service error constants
var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Operator roles allowed to drive assignment notifications
const (
	RoleEditorial = "editorial"
	RoleAdmin     = "admin"
)

// TokenService handles JWT token generation and validation for newsroom operators
type TokenService interface {
	GenerateToken(operator, role string) (string, error)
	ValidateToken(token string) (*OperatorClaims, error)
}

// OperatorClaims represents the claims in an operator JWT
type OperatorClaims struct {
	Operator  string    `json:"operator"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenID   string    `json:"jti"`
}

// HasEditorialAccess reports whether the claims carry a role that may send
// or confirm notifications on behalf of the newsroom.
func (c *OperatorClaims) HasEditorialAccess() bool {
	return c.Role == RoleEditorial || c.Role == RoleAdmin
}

// TokenServiceImpl implements TokenService with a symmetric HS256 key
type TokenServiceImpl struct {
	secretKey []byte
	tokenTTL  time.Duration
	issuer    string
	audience  string
}

// NewTokenService creates a new token service
func NewTokenService(cfg *config.JWTConfig) (TokenService, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("jwt secret key is required")
	}

	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &TokenServiceImpl{
		secretKey: []byte(cfg.SecretKey),
		tokenTTL:  ttl,
		issuer:    cfg.Issuer,
		audience:  cfg.Audience,
	}, nil
}

// GenerateToken issues an operator access token
func (s *TokenServiceImpl) GenerateToken(operator, role string) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("operator is required")
	}
	if role != RoleEditorial && role != RoleAdmin {
		return "", fmt.Errorf("unknown operator role: %s", role)
	}

	tokenID, err := generateTokenID()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}

	now := utils.UTCNow()
	claims := jwt.MapClaims{
		"operator": operator,
		"role":     role,
		"jti":      tokenID,
		"iss":      s.issuer,
		"aud":      s.audience,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses and validates an operator token
func (s *TokenServiceImpl) ValidateToken(token string) (*OperatorClaims, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "expired") || strings.Contains(err.Error(), "exp") {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsedToken.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenInvalid
	}

	operator, ok := claims["operator"].(string)
	if !ok || operator == "" {
		return nil, ErrTokenInvalid
	}
	role, ok := claims["role"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	tokenID, ok := claims["jti"].(string)
	if !ok {
		return nil, ErrTokenInvalid
	}
	issuedAt, ok := claims["iat"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}
	expiresAt, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrTokenInvalid
	}

	if utils.UTCNow().After(time.Unix(int64(expiresAt), 0)) {
		return nil, ErrTokenExpired
	}

	return &OperatorClaims{
		Operator:  operator,
		Role:      role,
		TokenID:   tokenID,
		IssuedAt:  time.Unix(int64(issuedAt), 0),
		ExpiresAt: time.Unix(int64(expiresAt), 0),
	}, nil
}

func generateTokenID() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// MockTokenService for testing
type MockTokenService struct {
	Claims *OperatorClaims
	Err    error
}

func NewMockTokenService() *MockTokenService {
	return &MockTokenService{
		Claims: &OperatorClaims{
			Operator:  "redaction@bf1tv.bf",
			Role:      RoleEditorial,
			IssuedAt:  utils.UTCNow(),
			ExpiresAt: utils.UTCNow().Add(24 * time.Hour),
			TokenID:   "mock-token-id",
		},
	}
}

func (m *MockTokenService) GenerateToken(operator, role string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "mock-token", nil
}

func (m *MockTokenService) ValidateToken(token string) (*OperatorClaims, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Claims, nil
}
