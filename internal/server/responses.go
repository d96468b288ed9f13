package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the uniform envelope for every JSON reply.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SendJSON sends a JSON response using Fiber
func SendJSON(c *fiber.Ctx, statusCode int, data any) error {
	return c.Status(statusCode).JSON(data)
}

// SendSuccess sends a successful JSON response
func SendSuccess(c *fiber.Ctx, data any, message string) error {
	return SendJSON(c, http.StatusOK, APIResponse{Success: true, Data: data, Message: message})
}

// SendCreated sends a created resource JSON response
func SendCreated(c *fiber.Ctx, data any, message string) error {
	return SendJSON(c, http.StatusCreated, APIResponse{Success: true, Data: data, Message: message})
}

// SendError sends an error JSON response
func SendError(c *fiber.Ctx, statusCode int, code, message string) error {
	return SendJSON(c, statusCode, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}

// SendBadRequest sends a bad request error response
func SendBadRequest(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// SendUnauthorized sends an unauthorized error response
func SendUnauthorized(c *fiber.Ctx, message string) error {
	return SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// SendNoContent sends a no content response
func SendNoContent(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}
