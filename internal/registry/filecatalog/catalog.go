package filecatalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/config"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
)

type entry struct {
	Name               string  `mapstructure:"name"`
	InputCostPerToken  float64 `mapstructure:"input_cost_per_token"`
	OutputCostPerToken float64 `mapstructure:"output_cost_per_token"`
}

// Catalog is a read-only model registry backed by models.yaml. Edits to the
// file are picked up without a restart.
type Catalog struct {
	log   *zap.Logger
	viper *viper.Viper

	mu     sync.RWMutex
	models map[string]registrydomain.Model
}

func New(cfg config.Config, log *zap.Logger) (*Catalog, error) {
	v := viper.New()
	v.SetConfigName("models")
	v.SetConfigType("yaml")
	v.AddConfigPath(cfg.ModelCatalogDir)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	c := &Catalog{
		log:    log.Named("registry.filecatalog"),
		viper:  v,
		models: map[string]registrydomain.Model{},
	}
	if err := c.reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := c.reload(); err != nil {
			c.log.Warn("model catalog reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		c.log.Info("model catalog reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return c, nil
}

func (c *Catalog) reload() error {
	var entries []entry
	if err := c.viper.UnmarshalKey("models", &entries); err != nil {
		return err
	}

	models := make(map[string]registrydomain.Model, len(entries))
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		models[name] = registrydomain.Model{
			Name:               name,
			InputCostPerToken:  e.InputCostPerToken,
			OutputCostPerToken: e.OutputCostPerToken,
		}
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Lookup(ctx context.Context, name string) (*registrydomain.Model, error) {
	_ = ctx

	c.mu.RLock()
	model, ok := c.models[name]
	c.mu.RUnlock()
	if !ok {
		return nil, &registrydomain.NotFoundError{Name: name}
	}
	return &model, nil
}

func (c *Catalog) List(ctx context.Context) ([]registrydomain.Model, error) {
	_ = ctx

	c.mu.RLock()
	models := make([]registrydomain.Model, 0, len(c.models))
	for _, model := range c.models {
		models = append(models, model)
	}
	c.mu.RUnlock()

	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}

func (c *Catalog) Create(ctx context.Context, req registrydomain.CreateRequest) (*registrydomain.Model, error) {
	return nil, registrydomain.ErrReadOnly
}

func (c *Catalog) Update(ctx context.Context, name string, req registrydomain.UpdateRequest) (*registrydomain.Model, error) {
	return nil, registrydomain.ErrReadOnly
}

func (c *Catalog) Delete(ctx context.Context, name string) error {
	return registrydomain.ErrReadOnly
}

var _ registrydomain.Service = (*Catalog)(nil)
