package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/services"
)

type EventHandler struct {
	eventService *services.EventService
}

func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

func (h *EventHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	groupID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid group id",
		})
	}

	var req dto.CreateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	event, err := h.eventService.CreateEvent(principal.UserID, groupID, &req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(event)
}

func (h *EventHandler) Feed(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	events, err := h.eventService.Feed(principal.UserID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

func (h *EventHandler) ListGroupEvents(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	groupID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid group id",
		})
	}

	events, err := h.eventService.ListGroupEvents(principal.UserID, groupID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

func (h *EventHandler) Update(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid event id",
		})
	}

	var req dto.UpdateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	event, err := h.eventService.UpdateEvent(principal.UserID, eventID, &req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(event)
}

func (h *EventHandler) Delete(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid event id",
		})
	}

	if err := h.eventService.DeleteEvent(principal.UserID, eventID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Event deleted successfully"})
}

func (h *EventHandler) ToggleAttendance(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid event id",
		})
	}

	var req dto.ToggleAttendanceRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	event, err := h.eventService.ToggleAttendance(principal.UserID, eventID, req.Email)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(event)
}
