package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/clock"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	"github.com/freewayhq/freeway/internal/registry/repository"
	"github.com/freewayhq/freeway/pkg/db"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&registrydomain.Model{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return New(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		Clock: clock.NewSystemClock(),
		Repo:  repository.Provide(),
	})
}

func TestLookupUnknownModel(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Lookup(context.Background(), "gpt-unknown")
	if !registrydomain.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err.Error() != "model=gpt-unknown not registered" {
		t.Fatalf("unexpected error text: %q", err.Error())
	}
}

func TestLookupIsCaseSensitive(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), registrydomain.CreateRequest{
		Name:               "gpt-4o",
		InputCostPerToken:  0.001,
		OutputCostPerToken: 0.002,
	}); err != nil {
		t.Fatalf("failed to register model: %v", err)
	}

	if _, err := svc.Lookup(context.Background(), "gpt-4o"); err != nil {
		t.Fatalf("expected exact lookup to succeed, got %v", err)
	}
	if _, err := svc.Lookup(context.Background(), "GPT-4o"); !registrydomain.IsNotFound(err) {
		t.Fatalf("expected case-mismatched lookup to miss, got %v", err)
	}
}

func TestCreateDuplicateModel(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), registrydomain.CreateRequest{Name: "gpt-4o"}); err != nil {
		t.Fatalf("failed to register model: %v", err)
	}
	_, err := svc.Create(context.Background(), registrydomain.CreateRequest{Name: "gpt-4o"})
	if !errors.Is(err, registrydomain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdatePricing(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Create(context.Background(), registrydomain.CreateRequest{
		Name:              "gpt-4o",
		InputCostPerToken: 0.001,
	}); err != nil {
		t.Fatalf("failed to register model: %v", err)
	}

	output := 0.005
	model, err := svc.Update(context.Background(), "gpt-4o", registrydomain.UpdateRequest{
		OutputCostPerToken: &output,
	})
	if err != nil {
		t.Fatalf("failed to update model: %v", err)
	}
	if model.OutputCostPerToken != 0.005 {
		t.Fatalf("expected output cost 0.005, got %v", model.OutputCostPerToken)
	}
	if model.InputCostPerToken != 0.001 {
		t.Fatalf("expected input cost unchanged, got %v", model.InputCostPerToken)
	}
}

func TestDeleteUnknownModel(t *testing.T) {
	svc := newTestService(t)

	err := svc.Delete(context.Background(), "ghost")
	if !registrydomain.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
