package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/services"
)

type GroupHandler struct {
	groupService *services.GroupService
}

func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

func (h *GroupHandler) Create(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	var req dto.CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	group, err := h.groupService.CreateGroup(principal.UserID, &req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *GroupHandler) Get(c *fiber.Ctx) error {
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

	group, err := h.groupService.GetGroup(principal.UserID, groupID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(group)
}

func (h *GroupHandler) List(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	groups, err := h.groupService.ListGroupsForAccount(principal.UserID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"groups": groups})
}

func (h *GroupHandler) Update(c *fiber.Ctx) error {
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

	var req dto.UpdateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	group, err := h.groupService.UpdateGroup(principal.UserID, groupID, &req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(group)
}

func (h *GroupHandler) Delete(c *fiber.Ctx) error {
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

	if err := h.groupService.DeleteGroup(principal.UserID, groupID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Group deleted successfully"})
}

func (h *GroupHandler) Invite(c *fiber.Ctx) error {
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

	var req dto.InviteRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Email is required",
		})
	}

	membership, err := h.groupService.Invite(principal.UserID, groupID, req.Email)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(membership)
}

func (h *GroupHandler) Approve(c *fiber.Ctx) error {
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

	var req dto.ApproveRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Email is required",
		})
	}

	membership, err := h.groupService.Approve(principal.UserID, groupID, req.Email)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(membership)
}

func (h *GroupHandler) Join(c *fiber.Ctx) error {
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

	membership, err := h.groupService.JoinPublic(principal.UserID, groupID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(membership)
}

func (h *GroupHandler) Leave(c *fiber.Ctx) error {
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

	if err := h.groupService.Leave(principal.UserID, groupID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left group successfully"})
}

func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
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

	var req dto.RemoveMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Email is required",
		})
	}

	if err := h.groupService.Remove(principal.UserID, groupID, req.Email); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Member removed successfully"})
}

func (h *GroupHandler) SetRole(c *fiber.Ctx) error {
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

	var req dto.SetRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if req.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Email is required",
		})
	}

	membership, err := h.groupService.SetRole(principal.UserID, groupID, req.Email, req.Role)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(membership)
}

func (h *GroupHandler) ListMembers(c *fiber.Ctx) error {
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

	members, err := h.groupService.ListMembers(principal.UserID, groupID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"members": members})
}
