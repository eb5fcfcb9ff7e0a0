package web

import (
	"context"
	"log/slog"

	"github.com/dukex/tunnelgate/pkg/accounts"
	"github.com/dukex/tunnelgate/pkg/auth"
	"github.com/dukex/tunnelgate/pkg/inventory"
	"github.com/dukex/tunnelgate/pkg/result"
	"github.com/dukex/tunnelgate/pkg/services"
	"github.com/gofiber/fiber/v3"
)

const (
	LegacyAuthParam  = "auth"
	APIKeyHeader     = "X-API-Key"
	EnterprisePrefix = "/api/user"
)

// Executor runs a built account command and reports its result.
type Executor interface {
	Execute(ctx context.Context, cmd accounts.Command) result.Result
}

// Identity is reported by the health endpoint.
type Identity struct {
	Service string
	Port    int
}

type APIHandlers struct {
	builder   *accounts.Builder
	executor  Executor
	inventory *inventory.Inventory
	identity  Identity
	logger    *slog.Logger
}

func NewAPIHandlers(
	builder *accounts.Builder,
	executor Executor,
	inventory *inventory.Inventory,
	identity Identity,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		builder:   builder,
		executor:  executor,
		inventory: inventory,
		identity:  identity,
		logger:    logger.With("module", "web"),
	}
}

// Register mounts every endpoint. Legacy endpoints authenticate with the
// auth query parameter, enterprise endpoints with the X-API-Key header.
func (h *APIHandlers) Register(router fiber.Router, gate *auth.Gate) {
	legacy := gate.Query(LegacyAuthParam, legacyDeny)

	// fiber runs route middleware before the handler, so the gate goes last.
	for _, kind := range accounts.MultiProtocolKinds {
		router.Get("/create"+string(kind), h.CreateMultiProtocol(kind), legacy)
		router.Get("/renew"+string(kind), h.RenewMultiProtocol(kind), legacy)
		router.Get("/delete"+string(kind), h.DeleteMultiProtocol(kind), legacy)
	}

	router.Get("/createzivpn", h.CreateZiVPN, legacy)
	router.Get("/renewzivpn", h.RenewZiVPN, legacy)
	router.Get("/deletezivpn", h.DeleteZiVPN, legacy)
	router.Get("/trialzivpn", h.TrialZiVPN, legacy)

	api := router.Group(EnterprisePrefix, gate.Header(APIKeyHeader, enterpriseDeny))
	api.Post("/create", h.CreateUser)
	api.Post("/renew", h.RenewUser)
	api.Post("/delete", h.DeleteUser)
	api.Post("/trial", h.TrialUser)

	router.Get("/health", h.HealthCheck)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	body := fiber.Map{
		"status":  "ok",
		"service": h.identity.Service,
		"port":    h.identity.Port,
	}

	if h.inventory != nil {
		body["binaries"] = h.inventory.Snapshot()
	}

	return c.JSON(body)
}

// Legacy query adapter.

func (h *APIHandlers) CreateMultiProtocol(kind accounts.Kind) fiber.Handler {
	return func(c fiber.Ctx) error {
		cmd, err := h.builder.CreateMultiProtocol(kind, accounts.MultiProtocolCreate{
			User:     c.Query("user"),
			Password: c.Query("password"),
			Exp:      c.Query("exp"),
			Quota:    c.Query("quota"),
			IPLimit:  c.Query("iplimit"),
		})

		return h.dispatch(c, cmd, err, invalidParameter)
	}
}

func (h *APIHandlers) RenewMultiProtocol(kind accounts.Kind) fiber.Handler {
	return func(c fiber.Ctx) error {
		cmd, err := h.builder.RenewMultiProtocol(kind, accounts.MultiProtocolRenew{
			User:    c.Query("user"),
			Exp:     c.Query("exp"),
			Quota:   c.Query("quota"),
			IPLimit: c.Query("iplimit"),
		})

		return h.dispatch(c, cmd, err, invalidParameter)
	}
}

func (h *APIHandlers) DeleteMultiProtocol(kind accounts.Kind) fiber.Handler {
	return func(c fiber.Ctx) error {
		cmd, err := h.builder.DeleteMultiProtocol(kind, accounts.MultiProtocolDelete{
			User: c.Query("user"),
		})

		return h.dispatch(c, cmd, err, invalidParameter)
	}
}

func (h *APIHandlers) CreateZiVPN(c fiber.Ctx) error {
	cmd, err := h.builder.CreateZiVPN(accounts.ZiVPNCreate{
		Password: c.Query("password"),
		Days:     c.Query("exp"),
		IPLimit:  c.Query("iplimit"),
	})

	return h.dispatch(c, cmd, err, invalidParameter)
}

func (h *APIHandlers) RenewZiVPN(c fiber.Ctx) error {
	cmd, err := h.builder.RenewZiVPN(accounts.ZiVPNRenew{
		Password: c.Query("password"),
		Days:     c.Query("exp"),
	})

	return h.dispatch(c, cmd, err, invalidParameter)
}

func (h *APIHandlers) DeleteZiVPN(c fiber.Ctx) error {
	cmd, err := h.builder.DeleteZiVPN(accounts.ZiVPNDelete{
		Password: c.Query("password"),
	})

	return h.dispatch(c, cmd, err, invalidParameter)
}

func (h *APIHandlers) TrialZiVPN(c fiber.Ctx) error {
	cmd, err := h.builder.TrialZiVPN(accounts.ZiVPNTrial{
		DurationMinutes: c.Query("duration"),
		IPLimit:         c.Query("iplimit"),
	})

	return h.dispatch(c, cmd, err, invalidParameter)
}

// Enterprise JSON adapter.

func (h *APIHandlers) CreateUser(c fiber.Ctx) error {
	req, ok := h.bindUserRequest(c)
	if !ok {
		return invalidPayload(c)
	}

	cmd, err := h.builder.CreateZiVPN(accounts.ZiVPNCreate{
		Password: req.Password.String(),
		Days:     req.Days.String(),
		IPLimit:  req.IPLimit.String(),
	})

	return h.dispatch(c, cmd, err, invalidPayload)
}

func (h *APIHandlers) RenewUser(c fiber.Ctx) error {
	req, ok := h.bindUserRequest(c)
	if !ok {
		return invalidPayload(c)
	}

	cmd, err := h.builder.RenewZiVPN(accounts.ZiVPNRenew{
		Password: req.Password.String(),
		Days:     req.Days.String(),
	})

	return h.dispatch(c, cmd, err, invalidPayload)
}

func (h *APIHandlers) DeleteUser(c fiber.Ctx) error {
	req, ok := h.bindUserRequest(c)
	if !ok {
		return invalidPayload(c)
	}

	cmd, err := h.builder.DeleteZiVPN(accounts.ZiVPNDelete{
		Password: req.Password.String(),
	})

	return h.dispatch(c, cmd, err, invalidPayload)
}

func (h *APIHandlers) TrialUser(c fiber.Ctx) error {
	req, ok := h.bindUserRequest(c)
	if !ok {
		return invalidPayload(c)
	}

	// Trial defaults apply only to absent fields, so an explicit 0 is kept.
	cmd, err := h.builder.TrialZiVPN(accounts.ZiVPNTrial{
		DurationMinutes: req.Duration.Literal(),
		IPLimit:         req.IPLimit.Literal(),
	})

	return h.dispatch(c, cmd, err, invalidPayload)
}

// bindUserRequest decodes the body. An empty body is an empty request, which
// the trial endpoint accepts with its defaults.
func (h *APIHandlers) bindUserRequest(c fiber.Ctx) (UserRequest, bool) {
	var req UserRequest

	if len(c.Body()) == 0 {
		return req, true
	}

	if err := c.Bind().JSON(&req); err != nil {
		h.logger.Debug("Rejected malformed request body", "path", c.Path(), "error", err)
		return req, false
	}

	return req, true
}

// dispatch answers build errors with the adapter's rejection and otherwise
// runs the command and writes its result.
func (h *APIHandlers) dispatch(c fiber.Ctx, cmd accounts.Command, err error, reject fiber.Handler) error {
	if err != nil {
		if services.IsValidationError(err) {
			return reject(c)
		}

		h.logger.Error("Failed to build account command", "path", c.Path(), "error", err)

		return c.Status(fiber.StatusInternalServerError).JSON(Response{Status: StatusError, Message: err.Error()})
	}

	return writeResult(c, h.executor.Execute(c.Context(), cmd))
}
