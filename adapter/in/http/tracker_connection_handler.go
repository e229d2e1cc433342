package http

import (
	"errors"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type ConnectionHandler struct {
	connections in.ConnectionUseCase
}

func NewConnectionHandler(connections in.ConnectionUseCase) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

func (h *ConnectionHandler) Register(router fiber.Router) {
	router.Delete("/users/:userID/connection", h.Disconnect)
}

// Disconnect destroys the stored mailbox credential. Syncing afterwards fails until the user reconnects.
func (h *ConnectionHandler) Disconnect(c *fiber.Ctx) error {
	userID, err := parseUserID(c)
	if err != nil {
		return err
	}

	if err := h.connections.Disconnect(c.UserContext(), userID); err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return apperr.NotFound("mail connection")
		}
		return toAppError(err)
	}
	return response.OK(c, fiber.Map{"disconnected": true})
}
