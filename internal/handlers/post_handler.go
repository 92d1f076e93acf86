package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/huddleapp/huddle-backend/internal/dto"
	"github.com/huddleapp/huddle-backend/internal/services"
)

type PostHandler struct {
	postService *services.PostService
}

func NewPostHandler(postService *services.PostService) *PostHandler {
	return &PostHandler{postService: postService}
}

func (h *PostHandler) Create(c *fiber.Ctx) error {
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

	var req dto.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	broadcast, err := h.postService.CreatePost(principal.UserID, groupID, &req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(broadcast)
}

func (h *PostHandler) List(c *fiber.Ctx) error {
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

	page, limit := pagination(c)
	posts, total, err := h.postService.ListGroupPosts(principal.UserID, groupID, page, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"posts": posts, "total": total, "page": page, "limit": limit})
}

func (h *PostHandler) Get(c *fiber.Ctx) error {
	if principal, err := requirePrincipal(c); principal == nil {
		return err
	}

	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	post, err := h.postService.GetPost(postID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(post)
}

func (h *PostHandler) Update(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	var req dto.UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	post, err := h.postService.UpdatePost(principal.UserID, postID, &req)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(post)
}

func (h *PostHandler) Delete(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	if err := h.postService.DeletePost(principal.UserID, postID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Post deleted successfully"})
}

func (h *PostHandler) React(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	var req dto.ReactRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	reactions, err := h.postService.React(principal.UserID, postID, req.Label)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"reactions": reactions})
}

func (h *PostHandler) CreateComment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	comment, err := h.postService.CreateComment(principal.UserID, postID, req.Content)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

func (h *PostHandler) ListComments(c *fiber.Ctx) error {
	if principal, err := requirePrincipal(c); principal == nil {
		return err
	}

	postID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid post id",
		})
	}

	page, limit := pagination(c)
	comments, err := h.postService.ListComments(postID, page, limit)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"comments": comments})
}

func (h *PostHandler) UpdateComment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	commentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid comment id",
		})
	}

	var req dto.UpdateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}

	comment, err := h.postService.UpdateComment(principal.UserID, commentID, req.Content)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(comment)
}

func (h *PostHandler) DeleteComment(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if principal == nil {
		return err
	}

	commentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid comment id",
		})
	}

	if err := h.postService.DeleteComment(principal.UserID, commentID); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Comment deleted successfully"})
}

func pagination(c *fiber.Ctx) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
