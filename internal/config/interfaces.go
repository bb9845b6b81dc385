package config

import "context"

// SecretProvider resolves secret references found in the environment. The
// production implementation reads AWS SSM Parameter Store; local development
// passes a nil provider and sets secrets directly.
type SecretProvider interface {
	// GetParametersBatch resolves the given parameter paths, returning a map
	// of path to plaintext value for everything found.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
