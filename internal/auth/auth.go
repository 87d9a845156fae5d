// Package auth verifies the signed bearer credentials presented to the
// gateway and produces authenticated principals.
//
// Credentials are HS256 JWTs signed with a process-wide shared secret.
// Permissions are never embedded in the token: they are recomputed from the
// static role table on every call, so a role-table change takes effect
// without re-issuing credentials.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/expokossodo/expogate/internal/model"
)

const issuer = "expogate"

// Sentinel errors distinguishing the two authentication failure classes.
var (
	// ErrExpiredCredential is returned for a structurally valid token whose
	// expiry has passed.
	ErrExpiredCredential = errors.New("auth: credential expired")
	// ErrInvalidCredential is returned on any structural, signature, or
	// claim failure.
	ErrInvalidCredential = errors.New("auth: invalid credential")
)

// Claims extends jwt.RegisteredClaims with the gateway's identity fields.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name"`
	Role string `json:"role"`
}

// Manager issues and verifies credentials against the shared secret.
type Manager struct {
	secret     []byte
	expiration time.Duration
}

// NewManager creates a Manager. expiration is the lifetime of issued
// credentials (default 30 minutes comes from config).
func NewManager(secret string, expiration time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}
	return &Manager{secret: []byte(secret), expiration: expiration}, nil
}

// IssueToken creates a signed credential for the given identity.
func (m *Manager) IssueToken(id, name string, role model.Role) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.expiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		Name: name,
		Role: string(role),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Authenticate verifies a bearer credential and returns the principal.
// Fails with ErrExpiredCredential when now >= expiry, ErrInvalidCredential
// on signature/structural failures or a missing/unrecognized role.
func (m *Manager) Authenticate(tokenStr string) (model.Principal, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.secret, nil
		},
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return model.Principal{}, ErrExpiredCredential
		}
		return model.Principal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return model.Principal{}, ErrInvalidCredential
	}
	if claims.Issuer != issuer {
		return model.Principal{}, fmt.Errorf("%w: issuer %q", ErrInvalidCredential, claims.Issuer)
	}
	if claims.Subject == "" || claims.Name == "" {
		return model.Principal{}, fmt.Errorf("%w: missing subject or name", ErrInvalidCredential)
	}

	role, err := model.ParseRole(claims.Role)
	if err != nil {
		return model.Principal{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	return model.Principal{ID: claims.Subject, Name: claims.Name, Role: role}, nil
}
