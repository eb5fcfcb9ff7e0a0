package web

import (
	"errors"
	"log/slog"

	"github.com/dukex/tunnelgate/pkg/result"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

const problemContentType = "application/problem+json"

func legacyDeny(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Response{Status: StatusError, Message: message})
}

func enterpriseDeny(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(PayloadError{Success: false, Error: message})
}

func invalidParameter(c fiber.Ctx) error {
	return legacyDeny(c, fiber.StatusBadRequest, MessageInvalidParameter)
}

func invalidPayload(c fiber.Ctx) error {
	return enterpriseDeny(c, fiber.StatusBadRequest, MessageInvalidPayload)
}

// writeResult maps a normalized result to the shared dispatch response.
func writeResult(c fiber.Ctx, res result.Result) error {
	switch res.Kind {
	case result.KindSuccess:
		return c.JSON(Response{Status: StatusSuccess, Data: res.Payload})
	case result.KindTimeout:
		return c.Status(fiber.StatusGatewayTimeout).JSON(Response{Status: StatusError, Message: res.Message})
	case result.KindBusy:
		return c.Status(fiber.StatusServiceUnavailable).JSON(Response{Status: StatusError, Message: res.Message})
	case result.KindInvalidOutput:
		detail := res.RawOutput

		return c.Status(fiber.StatusInternalServerError).JSON(Response{
			Status:  StatusError,
			Message: res.Message,
			Detail:  &detail,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(Response{Status: StatusError, Message: res.Message})
	}
}

// ErrorHandler answers framework level failures, such as unknown routes and
// recovered panics, with a problem document.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
		}

		problem := problems.NewStatusProblem(code).WithInstance(c.Path())

		if code >= fiber.StatusInternalServerError {
			logger.Error("Unhandled request error", "path", c.Path(), "error", err)
			problem = problem.WithType("internal_error")
		} else {
			problem = problem.WithDetail(err.Error())
		}

		return c.Status(code).JSON(problem, problemContentType)
	}
}
