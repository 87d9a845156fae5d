package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/expokossodo/expogate/internal/model"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager("test-secret", 30*time.Minute)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return m
}

func TestIssueAndAuthenticate(t *testing.T) {
	m := newTestManager(t)

	token, exp, err := m.IssueToken("staff-7", "Ana Quispe", model.RoleDoorStaff)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Fatal("expiry should be in the future")
	}

	p, err := m.Authenticate(token)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if p.ID != "staff-7" || p.Name != "Ana Quispe" || p.Role != model.RoleDoorStaff {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestAuthenticateExpired(t *testing.T) {
	m, err := NewManager("test-secret", -1*time.Minute)
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	token, _, err := m.IssueToken("r1", "Reader", model.RoleReader)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	_, err = m.Authenticate(token)
	if !errors.Is(err, ErrExpiredCredential) {
		t.Fatalf("expected ErrExpiredCredential, got %v", err)
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, _ := NewManager("other-secret", 30*time.Minute)

	token, _, err := other.IssueToken("r1", "Reader", model.RoleReader)
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}

	_, err = m.Authenticate(token)
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestAuthenticateGarbage(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Authenticate("not-a-token")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestAuthenticateUnknownRole(t *testing.T) {
	m := newTestManager(t)

	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			Issuer:    "expogate",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Name: "X",
		Role: "JANITOR",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = m.Authenticate(signed)
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for unknown role, got %v", err)
	}
}

func TestAuthenticateRejectsNoneAlgorithm(t *testing.T) {
	m := newTestManager(t)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "x",
			Issuer:    "expogate",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Name: "X",
		Role: string(model.RoleCoordinator),
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Authenticate(unsigned); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential for alg=none, got %v", err)
	}
}

func TestOperatorKeyHashRoundTrip(t *testing.T) {
	encoded, err := HashOperatorKey("s3cret-operator-key")
	if err != nil {
		t.Fatalf("HashOperatorKey error: %v", err)
	}

	ok, err := VerifyOperatorKey("s3cret-operator-key", encoded)
	if err != nil {
		t.Fatalf("VerifyOperatorKey error: %v", err)
	}
	if !ok {
		t.Fatal("expected matching key to verify")
	}

	ok, err = VerifyOperatorKey("wrong-key", encoded)
	if err != nil {
		t.Fatalf("VerifyOperatorKey error: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched key to fail")
	}
}
