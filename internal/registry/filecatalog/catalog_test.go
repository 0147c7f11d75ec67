package filecatalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/config"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
)

func newTestCatalog(t *testing.T, yaml string) *Catalog {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "models.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}

	catalog, err := New(config.Config{ModelCatalogDir: dir}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	return catalog
}

func TestLoadsModelsFromYAML(t *testing.T) {
	catalog := newTestCatalog(t, `
models:
  - name: gpt-4o
    input_cost_per_token: 0.01
    output_cost_per_token: 0.02
  - name: gpt-4o-mini
    input_cost_per_token: 0.001
`)

	model, err := catalog.Lookup(context.Background(), "gpt-4o")
	if err != nil {
		t.Fatalf("failed to look up model: %v", err)
	}
	if model.InputCostPerToken != 0.01 || model.OutputCostPerToken != 0.02 {
		t.Fatalf("unexpected pricing: %+v", model)
	}

	models, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	// Sorted by name.
	if models[0].Name != "gpt-4o" || models[1].Name != "gpt-4o-mini" {
		t.Fatalf("unexpected order: %+v", models)
	}
}

func TestLookupMissRendersNotRegistered(t *testing.T) {
	catalog := newTestCatalog(t, "models:\n  - name: gpt-4o\n")

	_, err := catalog.Lookup(context.Background(), "gpt-unknown")
	if !registrydomain.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if err.Error() != "model=gpt-unknown not registered" {
		t.Fatalf("unexpected error text: %q", err.Error())
	}

	// Case matters.
	if _, err := catalog.Lookup(context.Background(), "GPT-4o"); !registrydomain.IsNotFound(err) {
		t.Fatalf("expected case-mismatched lookup to miss, got %v", err)
	}
}

func TestSkipsUnnamedEntries(t *testing.T) {
	catalog := newTestCatalog(t, `
models:
  - name: ""
    input_cost_per_token: 1
  - name: gpt-4o
`)

	models, err := catalog.List(context.Background())
	if err != nil {
		t.Fatalf("failed to list models: %v", err)
	}
	if len(models) != 1 || models[0].Name != "gpt-4o" {
		t.Fatalf("expected only the named entry, got %+v", models)
	}
}

func TestWritesAreRejected(t *testing.T) {
	catalog := newTestCatalog(t, "models:\n  - name: gpt-4o\n")

	if _, err := catalog.Create(context.Background(), registrydomain.CreateRequest{Name: "x"}); !errors.Is(err, registrydomain.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if _, err := catalog.Update(context.Background(), "gpt-4o", registrydomain.UpdateRequest{}); !errors.Is(err, registrydomain.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if err := catalog.Delete(context.Background(), "gpt-4o"); !errors.Is(err, registrydomain.ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestMissingCatalogFileFails(t *testing.T) {
	if _, err := New(config.Config{ModelCatalogDir: t.TempDir()}, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing models.yaml")
	}
}
