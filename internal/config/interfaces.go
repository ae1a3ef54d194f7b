package config

import "context"

// SecretProvider abstracts secret retrieval so that production can resolve
// from AWS SSM Parameter Store while local development reads plain
// environment variables.
type SecretProvider interface {
	// GetParametersBatch resolves multiple secret identifiers and returns a
	// map of identifier to plaintext value for everything it could resolve.
	// Implementations handle batching and provider rate limits internally.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
