package config

import (
	"context"
	"fmt"

	"github.com/jonwraymond/simrun/secret"
)

// ResolveSecrets expands ${VAR} references and secretref values in the
// credential fields, in place.
func (c *Config) ResolveSecrets(ctx context.Context) (err error) {
	resolver, err := secret.DefaultRegistry.NewResolver(c.Secrets.Strict, c.Secrets.Providers)
	if err != nil {
		return fmt.Errorf("config: secrets: %w", err)
	}
	defer func() {
		if cerr := resolver.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("config: secrets: %w", cerr)
		}
	}()

	if err := resolver.ResolveInto(ctx,
		&c.Store.Remote.URL,
		&c.Store.Remote.Auth.Token,
		&c.Store.Remote.Auth.JWT.Key,
		&c.Store.Object.Endpoint,
		&c.Store.Object.AccessKey,
		&c.Store.Object.SecretKey,
	); err != nil {
		return fmt.Errorf("config: secrets: %w", err)
	}
	return nil
}
