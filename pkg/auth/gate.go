package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
)

const (
	MessageUnauthorized  = "Unauthorized"
	MessageConfigMissing = "Auth config missing"
)

// Denier writes the rejection response. Each endpoint family has its own
// error body shape, so the gate leaves the body to the caller.
type Denier func(c fiber.Ctx, status int, message string) error

type Gate struct {
	secrets SecretProvider
	logger  *slog.Logger
}

func NewGate(secrets SecretProvider, logger *slog.Logger) *Gate {
	return &Gate{
		secrets: secrets,
		logger:  logger.With("module", "auth"),
	}
}

// Verify compares a presented credential with the current secret. It returns
// an error wrapping ErrSecretUnavailable when the secret cannot be loaded and
// ErrUnauthorized on mismatch.
func (g *Gate) Verify(ctx context.Context, presented string) error {
	secret, err := g.secrets.Secret(ctx)
	if err != nil {
		return err
	}

	if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
		return ErrUnauthorized
	}

	return nil
}

// Query authenticates with the named query parameter.
func (g *Gate) Query(param string, deny Denier) fiber.Handler {
	return g.middleware(func(c fiber.Ctx) string { return c.Query(param) }, deny)
}

// Header authenticates with the named request header.
func (g *Gate) Header(name string, deny Denier) fiber.Handler {
	return g.middleware(func(c fiber.Ctx) string { return c.Get(name) }, deny)
}

func (g *Gate) middleware(credential func(fiber.Ctx) string, deny Denier) fiber.Handler {
	return func(c fiber.Ctx) error {
		err := g.Verify(c.Context(), credential(c))

		switch {
		case err == nil:
			return c.Next()
		case errors.Is(err, ErrUnauthorized):
			g.logger.Warn("Rejected request with invalid credential", "path", c.Path(), "ip", c.IP())
			return deny(c, fiber.StatusUnauthorized, MessageUnauthorized)
		default:
			g.logger.Error("Failed to load auth secret", "error", err)
			return deny(c, fiber.StatusInternalServerError, MessageConfigMissing)
		}
	}
}
