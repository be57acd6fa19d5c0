package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/gqlmeta/internal/cli/config"
	"github.com/conduit-lang/gqlmeta/internal/graphql/builder"
	"github.com/conduit-lang/gqlmeta/internal/graphql/synth"
	"github.com/conduit-lang/gqlmeta/internal/orm/declare"
	"github.com/conduit-lang/gqlmeta/internal/orm/schema"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func builderOptions(cfg *config.Config, logger *zap.Logger, extra ...builder.Option) []builder.Option {
	return append([]builder.Option{
		builder.WithLogger(logger),
		builder.WithSynthOptions(synth.Options{CaseInsensitiveFilters: cfg.Schema.CaseInsensitiveFilters}),
		builder.WithPageSize(cfg.Schema.DefaultPageSize, cfg.Schema.MaxPageSize),
	}, extra...)
}

// usesSQL reports whether any declared entity is stored in the database
func usesSQL(file *declare.File) bool {
	for _, e := range file.Entities {
		if e.Provider.Kind == declare.KindSQL {
			return true
		}
	}
	return false
}

// buildSchema loads the declarations and builds the schema
func buildSchema(ctx context.Context, cfg *config.Config, backends declare.Backends) (*schema.Registry, *builder.Artifact, error) {
	file, err := declare.Load(cfg.Schema.EntitiesFile)
	if err != nil {
		return nil, nil, err
	}

	reg := schema.NewRegistry()
	if err := declare.Apply(reg, file, backends); err != nil {
		return reg, nil, err
	}

	logger := backends.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a, err := builder.Build(ctx, reg, builderOptions(cfg, logger)...)
	if err != nil {
		return reg, nil, err
	}
	return reg, a, nil
}

// buildOffline builds the schema without connecting to any backend
func buildOffline(ctx context.Context) (*config.Config, *schema.Registry, *builder.Artifact, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	reg, a, err := buildSchema(ctx, cfg, declare.Backends{Offline: true})
	return cfg, reg, a, err
}

// flatten splits joined errors into their parts
func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range joined.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	if err == nil {
		return nil
	}
	return []error{err}
}
