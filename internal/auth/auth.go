package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the work factor for host key hashing
const bcryptCost = 12

// DefaultTokenDuration covers a long evening of hosting
const DefaultTokenDuration = 12 * time.Hour

// Claims bind a JWT to one session and role
type Claims struct {
	SessionCode string `json:"session_code"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Config contains authentication configuration
type Config struct {
	JWTSecret     string
	TokenDuration time.Duration
}

// Auth issues and validates host credentials. Hosts authenticate with
// either a signed token (preferred) or the raw host key handed out once
// at session creation.
type Auth struct {
	config Config
}

// New creates a new Auth instance
func New(config Config) *Auth {
	if config.TokenDuration == 0 {
		config.TokenDuration = DefaultTokenDuration
	}
	return &Auth{config: config}
}

// GenerateHostToken signs a token that grants host control over one session
func (a *Auth) GenerateHostToken(sessionCode string) (string, error) {
	claims := &Claims{
		SessionCode: sessionCode,
		Role:        "HOST",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(a.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "partyquiz",
			Subject:   sessionCode,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(a.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}

	return tokenString, nil
}

// ValidateHostToken validates a host token and returns its claims
func (a *Auth) ValidateHostToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %v", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("failed to extract claims")
	}
	if claims.Role != "HOST" {
		return nil, errors.New("token does not grant host access")
	}

	return claims, nil
}

// GenerateHostKey mints the raw host key returned exactly once at
// session creation
func GenerateHostKey() (string, error) {
	bytes := make([]byte, 24)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate host key: %v", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// HashHostKey hashes a host key for storage
func HashHostKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash host key: %v", err)
	}
	return string(hash), nil
}

// CheckHostKey compares a submitted key against the stored hash
func CheckHostKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// GenerateRejoinToken mints an opaque 128-bit single-use token
func GenerateRejoinToken() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate rejoin token: %v", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
