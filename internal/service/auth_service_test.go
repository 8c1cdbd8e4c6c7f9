package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/proficiency-backend/internal/config"
)

func newTestAuth() *AuthService {
	return NewAuthService(&config.Config{
		JWTSecret: "test-secret-0123456789",
		JWTExpiry: time.Hour,
	})
}

func TestAuth_IssueAndValidate(t *testing.T) {
	auth := newTestAuth()

	tok, err := auth.IssueToken(examinee, RoleExaminee, "Ayu")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	claims, err := auth.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != examinee || claims.Role != RoleExaminee || claims.Name != "Ayu" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestAuth_IssueRejectsBadInput(t *testing.T) {
	auth := newTestAuth()
	if _, err := auth.IssueToken("", RoleReviewer, ""); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("empty subject err = %v", err)
	}
	if _, err := auth.IssueToken("x", Role("root"), ""); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("unknown role err = %v", err)
	}
}

func TestAuth_Expired(t *testing.T) {
	auth := newTestAuth()
	issued := time.Now().Add(-2 * time.Hour)
	auth.now = func() time.Time { return issued }
	tok, err := auth.IssueToken(examinee, RoleExaminee, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	auth.now = time.Now
	if _, err := auth.ValidateToken(tok); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	tok, err := newTestAuth().IssueToken(examinee, RoleExaminee, "")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	other := NewAuthService(&config.Config{JWTSecret: "another-secret-9876543210", JWTExpiry: time.Hour})
	if _, err := other.ValidateToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestAuth_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   examinee,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: RoleExaminee,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := newTestAuth().ValidateToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestAuth_RejectsUnknownRole(t *testing.T) {
	auth := newTestAuth()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   examinee,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: Role("superuser"),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(auth.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := auth.ValidateToken(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestAuth_Garbage(t *testing.T) {
	if _, err := newTestAuth().ValidateToken("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}
