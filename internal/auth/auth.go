// Package auth handles login verification and JWT session tokens. The
// tool has a single admin role; tokens carry the username and role.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"ricevute/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// Claims is the JWT payload for a logged-in user.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Manager verifies credentials against the user store and issues tokens.
type Manager struct {
	repo   *storage.SQLiteRepository
	secret []byte
	ttl    time.Duration
}

func NewManager(repo *storage.SQLiteRepository, secret string, ttl time.Duration) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("missing JWT secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{repo: repo, secret: []byte(secret), ttl: ttl}, nil
}

// Login checks the password and returns a signed token on success. Unknown
// users and wrong passwords report the same error.
func (m *Manager) Login(ctx context.Context, username, password string) (string, error) {
	user, err := m.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	slog.InfoContext(ctx, "User logged in", "username", user.Username)
	return token, nil
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL reports the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Bootstrap creates the initial admin account when no users exist yet.
// Credentials come from ADMIN_USERNAME and ADMIN_PASSWORD; both empty is
// fine for setups where the database is seeded another way.
func Bootstrap(ctx context.Context, repo *storage.SQLiteRepository, username, password string) error {
	n, err := repo.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return nil
	}
	if username == "" || password == "" {
		slog.WarnContext(ctx, "No users exist and no admin credentials configured")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if _, err := repo.CreateUser(ctx, username, string(hash), "admin"); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.InfoContext(ctx, "Admin user bootstrapped", "username", username)
	return nil
}
