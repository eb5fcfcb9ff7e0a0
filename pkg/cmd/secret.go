package cmd

import (
	"log/slog"

	"github.com/dukex/tunnelgate/pkg/auth"
)

// NewSecretProvider reads the shared secret from Redis when a URL is given
// and from the key file otherwise. The returned close func releases the
// Redis client.
func NewSecretProvider(logger *slog.Logger, file, redisURL, redisKey string) (auth.SecretProvider, func() error, error) {
	if redisURL == "" {
		if file == "" {
			file = auth.DefaultSecretFile
		}

		logger.Info("Using file auth secret", "path", file)

		return auth.FileSecret{Path: file}, func() error { return nil }, nil
	}

	provider, err := auth.NewRedisSecret(redisURL, redisKey)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Using Redis auth secret", "key", provider.Key())

	return provider, provider.Close, nil
}
