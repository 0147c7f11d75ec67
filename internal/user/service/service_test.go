package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/clock"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
	"github.com/freewayhq/freeway/internal/user/repository"
	"github.com/freewayhq/freeway/pkg/db"
)

func newTestService(t *testing.T) userdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&userdomain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	return New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewSystemClock(),
		Repo:  repository.Provide(),
	})
}

func TestCreateAppliesDefaultQuotas(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Create(context.Background(), userdomain.CreateRequest{
		Username: "alice",
		Password: "correct-password",
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if user.RequestsPerMinute != userdomain.DefaultRequestsPerMinute {
		t.Fatalf("expected default rpm %d, got %d", userdomain.DefaultRequestsPerMinute, user.RequestsPerMinute)
	}
	if user.TokensPerMinute != userdomain.DefaultTokensPerMinute {
		t.Fatalf("expected default tpm %d, got %d", userdomain.DefaultTokensPerMinute, user.TokensPerMinute)
	}
	if user.CostUSDPerMonth != userdomain.DefaultCostUSDPerMonth {
		t.Fatalf("expected default cost limit %v, got %v", userdomain.DefaultCostUSDPerMonth, user.CostUSDPerMonth)
	}
	if user.IsAdmin {
		t.Fatal("expected non-admin by default")
	}
}

func TestCreateDuplicateUsername(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), userdomain.CreateRequest{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	_, err := svc.Create(context.Background(), userdomain.CreateRequest{Username: "alice", Password: "pw2"})
	if !errors.Is(err, userdomain.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), userdomain.CreateRequest{Username: "alice", Password: "correct-password"}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	_, err := svc.Authenticate(context.Background(), "alice", "wrong-password")
	if !errors.Is(err, userdomain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateUnknownUserSameError(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Authenticate(context.Background(), "nobody", "whatever")
	if !errors.Is(err, userdomain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthenticateRoundTrip(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), userdomain.CreateRequest{Username: "alice", Password: "correct-password"}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "alice", "correct-password")
	if err != nil {
		t.Fatalf("expected successful login, got %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}
}

func TestEnsureUserProvisionsDefaults(t *testing.T) {
	svc := newTestService(t)

	principal, err := svc.EnsureUser(context.Background(), "idp-user")
	if err != nil {
		t.Fatalf("failed to provision user: %v", err)
	}
	if principal.RequestsPerMinute != userdomain.DefaultRequestsPerMinute {
		t.Fatalf("expected default rpm, got %d", principal.RequestsPerMinute)
	}
	if principal.IsAdmin {
		t.Fatal("provisioned users must not be admins")
	}

	// Second resolve returns the same identity, not a new row.
	again, err := svc.EnsureUser(context.Background(), "idp-user")
	if err != nil {
		t.Fatalf("failed to re-resolve user: %v", err)
	}
	if again.ID != principal.ID {
		t.Fatalf("expected stable user id, got %s and %s", principal.ID, again.ID)
	}

	// Provisioned users carry no password.
	if _, err := svc.Authenticate(context.Background(), "idp-user", ""); !errors.Is(err, userdomain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUpdateQuotas(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), userdomain.CreateRequest{Username: "alice", Password: "pw"}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	rpm := int64(5)
	cost := 99.5
	user, err := svc.Update(context.Background(), "alice", userdomain.UpdateRequest{
		RequestsPerMinute: &rpm,
		CostUSDPerMonth:   &cost,
	})
	if err != nil {
		t.Fatalf("failed to update user: %v", err)
	}
	if user.RequestsPerMinute != 5 {
		t.Fatalf("expected rpm 5, got %d", user.RequestsPerMinute)
	}
	if user.CostUSDPerMonth != 99.5 {
		t.Fatalf("expected cost limit 99.5, got %v", user.CostUSDPerMonth)
	}
	// Untouched fields keep their values.
	if user.TokensPerMinute != userdomain.DefaultTokensPerMinute {
		t.Fatalf("expected tpm unchanged, got %d", user.TokensPerMinute)
	}
}

func TestDeleteUnknownUser(t *testing.T) {
	svc := newTestService(t)

	if err := svc.Delete(context.Background(), "ghost"); !errors.Is(err, userdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
