package services

import (
	"errors"
	"testing"
	"time"

	"github.com/huddleapp/huddle-backend/internal/config"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/models"
)

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
	}
	return NewAuthService(newTestDB(t), cfg)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.Register(&dto.RegisterRequest{
		Email:    "  Alice@Example.COM ",
		Password: "supersecret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if resp.User.Email != "alice@example.com" {
		t.Errorf("stored email = %q, want normalized", resp.User.Email)
	}
	if resp.User.DisplayName != "alice" {
		t.Errorf("default display name = %q, want alice", resp.User.DisplayName)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("registration did not issue a token pair")
	}

	// Email lookups are case-insensitive through normalization.
	if _, err := svc.Login(&dto.LoginRequest{Email: "ALICE@example.com", Password: "supersecret"}); err != nil {
		t.Errorf("Login: %v", err)
	}
	if _, err := svc.Login(&dto.LoginRequest{Email: "alice@example.com", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("bad password err = %v, want ErrInvalidCredentials", err)
	}

	if _, err := svc.Register(&dto.RegisterRequest{Email: "alice@example.com", Password: "anotherpass"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate register err = %v, want ErrEmailTaken", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(t)

	if _, err := svc.Register(&dto.RegisterRequest{Email: "", Password: "supersecret"}); err == nil {
		t.Error("empty email should be rejected")
	}
	if _, err := svc.Register(&dto.RegisterRequest{Email: "a@b.com", Password: "short"}); err == nil {
		t.Error("short password should be rejected")
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.Register(&dto.RegisterRequest{Email: "bob@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	rotated, err := svc.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.RefreshToken == resp.RefreshToken {
		t.Error("refresh did not rotate the token")
	}

	// The old token is single-use.
	if _, err := svc.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("reused token err = %v, want ErrInvalidToken", err)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.Register(&dto.RegisterRequest{Email: "bob@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.Logout(&dto.LogoutRequest{RefreshToken: resp.RefreshToken}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Refresh(&dto.RefreshRequest{RefreshToken: resp.RefreshToken}); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("revoked token err = %v, want ErrInvalidToken", err)
	}
}

func TestUpdateProfileAllowList(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.Register(&dto.RegisterRequest{Email: "bob@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	user, err := svc.UpdateProfile(resp.User.ID, &dto.UpdateProfileRequest{
		DisplayName: strPtr("Bobby"),
		PushToken:   strPtr("tok-9"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	reloaded, err := svc.GetUser(user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if reloaded.DisplayName != "Bobby" || reloaded.PushToken != "tok-9" {
		t.Errorf("profile = %q/%q, want Bobby/tok-9", reloaded.DisplayName, reloaded.PushToken)
	}
	// Untouched fields survive the patch.
	if reloaded.Email != "bob@example.com" {
		t.Errorf("email changed to %q", reloaded.Email)
	}

	if _, err := svc.UpdateProfile(user.ID, &dto.UpdateProfileRequest{DisplayName: strPtr("  ")}); err == nil {
		t.Error("blank display name should be rejected")
	}
}

func TestDeleteAccount(t *testing.T) {
	svc := newAuthService(t)

	resp, err := svc.Register(&dto.RegisterRequest{Email: "bob@example.com", Password: "supersecret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := svc.DeleteAccount(resp.User.ID, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v, want ErrInvalidCredentials", err)
	}
	if err := svc.DeleteAccount(resp.User.ID, "supersecret"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if _, err := svc.GetUser(resp.User.ID); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("deleted user lookup err = %v, want ErrUserNotFound", err)
	}

	var tokens int64
	svc.db.Model(&models.RefreshToken{}).Where("user_id = ?", resp.User.ID).Count(&tokens)
	if tokens != 0 {
		t.Errorf("%d refresh tokens survive account deletion", tokens)
	}
}
