package services

import (
	"context"
	"testing"
	"time"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

func newAuthService(t *testing.T) AuthService {
	t.Helper()
	db := openTestDB(t)
	log := logger.NewNop()
	return NewAuthService(db, log, repos.NewUserRepo(db, log), "test-secret", 7*24*time.Hour)
}

func validRegister() RegisterInput {
	return RegisterInput{
		Username:        "alice",
		Email:           "alice@example.com",
		Password:        "Sup3rSecret",
		ConfirmPassword: "Sup3rSecret",
	}
}

func TestRegisterThenLogin(t *testing.T) {
	svc := newAuthService(t)

	user, token, err := svc.RegisterUser(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if user.Role != types.RoleTeacher {
		t.Fatalf("default role: want=%s got=%s", types.RoleTeacher, user.Role)
	}
	if user.PasswordHash == "Sup3rSecret" {
		t.Fatal("password stored in plaintext")
	}
	if token == "" {
		t.Fatal("register returned empty token")
	}

	loggedIn, token, err := svc.LoginUser(context.Background(), "alice@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatalf("LoginUser: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("login user id: want=%d got=%d", user.ID, loggedIn.ID)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != types.RoleTeacher {
		t.Fatalf("claims: got userId=%d role=%s", claims.UserID, claims.Role)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newAuthService(t)

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"bad_email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"password_mismatch", func(in *RegisterInput) { in.ConfirmPassword = "Different1" }},
		{"too_short", func(in *RegisterInput) { in.Password = "Ab1"; in.ConfirmPassword = "Ab1" }},
		{"no_uppercase", func(in *RegisterInput) { in.Password = "alllower1"; in.ConfirmPassword = "alllower1" }},
		{"no_digit", func(in *RegisterInput) { in.Password = "NoDigitsHere"; in.ConfirmPassword = "NoDigitsHere" }},
		{"missing_username", func(in *RegisterInput) { in.Username = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validRegister()
			tc.mutate(&in)
			if _, _, err := svc.RegisterUser(context.Background(), in); !apierr.Is(err, apierr.CodeValidation) {
				t.Fatalf("want validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc := newAuthService(t)
	if _, _, err := svc.RegisterUser(context.Background(), validRegister()); err != nil {
		t.Fatalf("first register: %v", err)
	}
	in := validRegister()
	in.Username = "alice2"
	if _, _, err := svc.RegisterUser(context.Background(), in); !apierr.Is(err, apierr.CodeConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc := newAuthService(t)
	if _, _, err := svc.RegisterUser(context.Background(), validRegister()); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := svc.LoginUser(context.Background(), "alice@example.com", "WrongPass1"); !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	if _, _, err := svc.LoginUser(context.Background(), "nobody@example.com", "Sup3rSecret"); !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("unknown email: want unauthorized, got %v", err)
	}
}

func TestVerifyTokenRejectsTampering(t *testing.T) {
	svc := newAuthService(t)
	_, token, err := svc.RegisterUser(context.Background(), validRegister())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.VerifyToken(token + "x"); !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("want unauthorized for tampered token, got %v", err)
	}
	other := NewAuthService(nil, logger.NewNop(), nil, "other-secret", time.Hour)
	if _, err := other.VerifyToken(token); !apierr.Is(err, apierr.CodeUnauthorized) {
		t.Fatalf("want unauthorized for wrong key, got %v", err)
	}
}
