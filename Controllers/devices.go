package Controllers

import (
	"AviCRM/Models"
	"AviCRM/middleware"

	"github.com/gofiber/fiber/v2"
)

// DeviceController registers the FCM token of a user's phone
type DeviceController struct {
	Tokens *Models.DeviceTokens
}

func NewDeviceController(tokens *Models.DeviceTokens) *DeviceController {
	return &DeviceController{Tokens: tokens}
}

func (c *DeviceController) UpdateToken(ctx *fiber.Ctx) error {
	var input Models.UpdateTokenRequest
	if err := middleware.ParseBody(ctx, &input); err != nil {
		return respondError(ctx, err, "Invalid token request")
	}

	if _, err := c.Tokens.Save(input.Username, input.Value); err != nil {
		return respondError(ctx, err, "Failed to save device token")
	}
	return ctx.JSON(fiber.Map{"message": "Token Updated Successfully"})
}
