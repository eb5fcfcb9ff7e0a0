package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/tunnelgate/pkg/auth"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSecret struct {
	secret string
	err    error
}

func (s staticSecret) Secret(context.Context) (string, error) {
	return s.secret, s.err
}

func writeSecret(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".key")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileSecret(t *testing.T) {
	path := writeSecret(t, "  topsecret\n")

	secret, err := auth.FileSecret{Path: path}.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "topsecret", secret)
}

func TestFileSecret_ReadsFreshValue(t *testing.T) {
	path := writeSecret(t, "first")
	provider := auth.FileSecret{Path: path}

	secret, err := provider.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", secret)

	require.NoError(t, os.WriteFile(path, []byte("rotated\n"), 0o600))

	secret, err = provider.Secret(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated", secret)
}

func TestFileSecret_Unavailable(t *testing.T) {
	_, err := auth.FileSecret{Path: filepath.Join(t.TempDir(), "missing")}.Secret(context.Background())
	assert.ErrorIs(t, err, auth.ErrSecretUnavailable)

	_, err = auth.FileSecret{Path: writeSecret(t, " \n")}.Secret(context.Background())
	assert.ErrorIs(t, err, auth.ErrSecretUnavailable)
}

func TestNewRedisSecret_InvalidURL(t *testing.T) {
	_, err := auth.NewRedisSecret("not-a-redis-url", "")
	assert.Error(t, err)
}

func TestRedisSecret_UnreachableServer(t *testing.T) {
	provider, err := auth.NewRedisSecret("redis://127.0.0.1:1/0", "")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = provider.Close()
	})

	_, err = provider.Secret(context.Background())
	assert.ErrorIs(t, err, auth.ErrSecretUnavailable)
}

func TestGate_Verify(t *testing.T) {
	tests := []struct {
		name      string
		provider  auth.SecretProvider
		presented string
		err       error
	}{
		{
			name:      "match",
			provider:  staticSecret{secret: "k"},
			presented: "k",
		},
		{
			name:      "mismatch",
			provider:  staticSecret{secret: "k"},
			presented: "nope",
			err:       auth.ErrUnauthorized,
		},
		{
			name:      "missing credential",
			provider:  staticSecret{secret: "k"},
			presented: "",
			err:       auth.ErrUnauthorized,
		},
		{
			name:      "secret unavailable wins over credential check",
			provider:  staticSecret{err: auth.ErrSecretUnavailable},
			presented: "",
			err:       auth.ErrSecretUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := auth.NewGate(tt.provider, slog.Default())

			err := gate.Verify(context.Background(), tt.presented)
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}

			assert.True(t, errors.Is(err, tt.err), err)
		})
	}
}

func setupGateApp(provider auth.SecretProvider) *fiber.App {
	gate := auth.NewGate(provider, slog.Default())
	deny := func(c fiber.Ctx, status int, message string) error {
		return c.Status(status).JSON(fiber.Map{"denied": message})
	}
	ok := func(c fiber.Ctx) error { return c.SendString("ok") }

	app := fiber.New()
	app.Get("/query", ok, gate.Query("auth", deny))
	app.Post("/header", ok, gate.Header("X-API-Key", deny))

	return app
}

func TestGate_Middleware(t *testing.T) {
	tests := []struct {
		name     string
		provider auth.SecretProvider
		request  func() *http.Request
		status   int
		denied   string
	}{
		{
			name:     "query accepted",
			provider: staticSecret{secret: "k"},
			request:  func() *http.Request { return httptest.NewRequest(http.MethodGet, "/query?auth=k", nil) },
			status:   http.StatusOK,
		},
		{
			name:     "query rejected",
			provider: staticSecret{secret: "k"},
			request:  func() *http.Request { return httptest.NewRequest(http.MethodGet, "/query?auth=x", nil) },
			status:   http.StatusUnauthorized,
			denied:   "Unauthorized",
		},
		{
			name:     "header accepted",
			provider: staticSecret{secret: "k"},
			request: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/header", nil)
				req.Header.Set("X-API-Key", "k")

				return req
			},
			status: http.StatusOK,
		},
		{
			name:     "header missing",
			provider: staticSecret{secret: "k"},
			request:  func() *http.Request { return httptest.NewRequest(http.MethodPost, "/header", nil) },
			status:   http.StatusUnauthorized,
			denied:   "Unauthorized",
		},
		{
			name:     "secret unavailable",
			provider: staticSecret{err: auth.ErrSecretUnavailable},
			request:  func() *http.Request { return httptest.NewRequest(http.MethodGet, "/query?auth=k", nil) },
			status:   http.StatusInternalServerError,
			denied:   "Auth config missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := setupGateApp(tt.provider)

			resp, err := app.Test(tt.request())
			require.NoError(t, err)

			defer func() {
				err := resp.Body.Close()
				if err != nil {
					t.Logf("Failed to close response body: %v", err)
				}
			}()

			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.denied != "" {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, tt.denied, body["denied"])
			}
		})
	}
}
