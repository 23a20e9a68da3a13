package server

import (
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validator struct {
	errs []fieldError
}

func (v *validator) check(ok bool, field, msg string) {
	if !ok {
		v.errs = append(v.errs, fieldError{Field: field, Message: msg})
	}
}

func (v *validator) required(value, field, msg string) {
	v.check(strings.TrimSpace(value) != "", field, msg)
}

func (v *validator) email(value, field string) {
	addr, err := mail.ParseAddress(value)
	v.check(err == nil && addr.Address == strings.TrimSpace(value), field, "Valid email is required")
}

// respond writes the collected errors, or returns false when there are none.
func (v *validator) respond(c *fiber.Ctx) (bool, error) {
	if len(v.errs) == 0 {
		return false, nil
	}
	return true, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  v.errs,
	})
}

// parseBody decodes a JSON body, answering 400 on malformed input.
func parseBody(c *fiber.Ctx, dst any) (bool, error) {
	if err := c.BodyParser(dst); err != nil {
		return false, message(c, fiber.StatusBadRequest, "Invalid request body")
	}
	return true, nil
}
