package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError writes the standard failure envelope.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	resp := fiber.Map{"success": false}

	if appErr, ok := err.(*AppError); ok {
		resp["message"] = appErr.Message
		resp["code"] = appErr.Code
		if appErr.Err != nil {
			resp["details"] = appErr.Err.Error()
		}
	} else {
		resp["message"] = err.Error()
	}

	return c.Status(status).JSON(resp)
}

// Success wraps a payload in the standard success envelope.
func Success(payload fiber.Map) fiber.Map {
	out := fiber.Map{"success": true}
	for k, v := range payload {
		out[k] = v
	}
	return out
}
