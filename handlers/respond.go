package handlers

import (
	"github.com/gofiber/fiber/v2"

	"quickpad/metrics"
	"quickpad/utils"
)

// Every handler response is wrapped in the {success, ...} envelope; errors
// carry a single error string and map onto a small taxonomy:
// validation 400, not found 404, wrong password 401, unsupported media 400,
// storage 500 (logged, generic message to the client).

func respondOK(c *fiber.Ctx, data fiber.Map) error {
	body := fiber.Map{"success": true}
	for k, v := range data {
		body[k] = v
	}
	return c.JSON(body)
}

func respondError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func respondValidationError(c *fiber.Ctx, message string) error {
	return respondError(c, fiber.StatusBadRequest, message)
}

func respondNotFound(c *fiber.Ctx, message string) error {
	return respondError(c, fiber.StatusNotFound, message)
}

func respondUnauthorized(c *fiber.Ctx, message string) error {
	return respondError(c, fiber.StatusUnauthorized, message)
}

func respondUnsupportedMedia(c *fiber.Ctx, message string) error {
	return respondError(c, fiber.StatusBadRequest, message)
}

// respondStorageError logs the real failure and returns a generic message so
// disk/db details never reach the client.
func respondStorageError(c *fiber.Ctx, context string, err error, message string) error {
	utils.LogRequestError(c, context, err)
	metrics.IncrementError("storage", context)
	return respondError(c, fiber.StatusInternalServerError, message)
}
