// Package auth checks callers against a shared secret that is re-read on
// every request, so rotating it needs no restart.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultSecretFile = "/root/.key"
	DefaultRedisKey   = "tunnelgate:auth_key"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrSecretUnavailable = errors.New("auth secret unavailable")
)

// SecretProvider returns the current shared secret.
type SecretProvider interface {
	Secret(ctx context.Context) (string, error)
}

// FileSecret reads the secret from a file, trimming surrounding whitespace.
type FileSecret struct {
	Path string
}

func (f FileSecret) Secret(context.Context) (string, error) {
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecretUnavailable, err)
	}

	secret := strings.TrimSpace(string(content))
	if secret == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSecretUnavailable, f.Path)
	}

	return secret, nil
}

// RedisSecret reads the secret from a Redis string key.
type RedisSecret struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSecret(url, key string) (*RedisSecret, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return NewRedisSecretFromClient(redis.NewClient(opts), key), nil
}

func NewRedisSecretFromClient(client redis.UniversalClient, key string) *RedisSecret {
	if key == "" {
		key = DefaultRedisKey
	}

	return &RedisSecret{client: client, key: key}
}

func (r *RedisSecret) Secret(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: redis key %s not set", ErrSecretUnavailable, r.key)
	}

	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecretUnavailable, err)
	}

	secret := strings.TrimSpace(value)
	if secret == "" {
		return "", fmt.Errorf("%w: redis key %s is empty", ErrSecretUnavailable, r.key)
	}

	return secret, nil
}

func (r *RedisSecret) Close() error {
	return r.client.Close()
}

func (r *RedisSecret) Key() string {
	return r.key
}
