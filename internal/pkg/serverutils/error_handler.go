package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// retryable is implemented by errors that leave server state untouched, so the same
// request can be sent again.
type retryable interface {
	Retryable() bool
}

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

// WriteError maps err to a status code and writes the error envelope.
func WriteError(ctx *fiber.Ctx, err error) error {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ctx.Status(fiber.StatusBadRequest).JSON(ValidationErrorResponse(validationErr.Fields))
	}

	var r retryable
	if errors.As(err, &r) && r.Retryable() {
		return ctx.Status(fiber.StatusBadGateway).JSON(RetryableErrorResponse(fiber.StatusBadGateway, err.Error()))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
}
