package utils

import "github.com/gofiber/fiber/v2"

// SendJSON writes data as the response body with the given status code.
func SendJSON(c *fiber.Ctx, status int, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(data)
}

// SendError sends an {"error": message} body with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorWithFields(c, status, message, nil)
}

// SendErrorWithFields sends an error body extended with extra top-level fields.
// The error key always carries message.
func SendErrorWithFields(c *fiber.Ctx, status int, message string, fields fiber.Map) error {
	if message == "" {
		message = "error"
	}

	body := fiber.Map{}
	for key, value := range fields {
		body[key] = value
	}
	body["error"] = message

	return c.Status(status).JSON(body)
}
