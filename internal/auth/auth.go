// Package auth secures the control API with a single operator
// credential and JWT bearer tokens.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)

// Claims carries the operator identity inside the JWT
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Manager issues and validates operator tokens
type Manager struct {
	secret        []byte
	tokenDuration time.Duration
	operator      string
	passwordHash  []byte
}

// Config parameterizes the auth manager
type Config struct {
	Secret        string        `json:"-"`
	TokenDuration time.Duration `json:"token_duration"`
	Operator      string        `json:"operator"`
	PasswordHash  string        `json:"-"` // bcrypt hash of the operator password
}

// NewManager creates an auth manager. The operator password is supplied
// as a bcrypt hash; use HashPassword to produce one.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret must not be empty")
	}
	if cfg.PasswordHash == "" {
		return nil, errors.New("operator password hash must not be empty")
	}
	if cfg.TokenDuration <= 0 {
		cfg.TokenDuration = 12 * time.Hour
	}
	if cfg.Operator == "" {
		cfg.Operator = "admin"
	}
	return &Manager{
		secret:        []byte(cfg.Secret),
		tokenDuration: cfg.TokenDuration,
		operator:      cfg.Operator,
		passwordHash:  []byte(cfg.PasswordHash),
	}, nil
}

// HashPassword produces a bcrypt hash for configuration
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks the operator credential and issues an access token
func (m *Manager) Login(operator, password string) (string, error) {
	if operator != m.operator {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return m.generateToken()
}

func (m *Manager) generateToken() (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Operator: m.operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   m.operator,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "dex-market-bot",
		},
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies an access token
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TokenDuration returns the configured token lifetime in seconds
func (m *Manager) TokenDuration() int64 {
	return int64(m.tokenDuration.Seconds())
}

// ContextKeyOperator is the gin context key holding the operator name
const ContextKeyOperator = "operator"

// Middleware enforces a valid bearer token on protected routes
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		claims, err := m.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ContextKeyOperator, claims.Operator)
		c.Next()
	}
}
