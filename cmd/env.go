package cmd

import (
	"context"

	"github.com/cantina-forks/dal-node/nodebuilder"
)

// StorePath reads the store path from the context.
func StorePath(ctx context.Context) string {
	return ctx.Value(storePathKey{}).(string)
}

// WithStorePath sets the store path in the given context.
func WithStorePath(ctx context.Context, storePath string) context.Context {
	return context.WithValue(ctx, storePathKey{}, storePath)
}

// NodeConfig reads the node config from the context, falling back to
// defaults when none was parsed.
func NodeConfig(ctx context.Context) nodebuilder.Config {
	cfg, ok := ctx.Value(configKey{}).(nodebuilder.Config)
	if !ok {
		cfg = *nodebuilder.DefaultConfig()
	}
	return cfg
}

// WithNodeConfig sets the node config in the given context.
func WithNodeConfig(ctx context.Context, cfg *nodebuilder.Config) context.Context {
	return context.WithValue(ctx, configKey{}, *cfg)
}

type (
	storePathKey struct{}
	configKey    struct{}
)
