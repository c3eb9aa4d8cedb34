package server

import (
	"io"
	"log/slog"

	"portal/internal/middleware"
	"portal/internal/models"
	"portal/internal/storage"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profile/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("User", userID))
	}

	return c.JSON(models.Success(fiber.Map{
		"user": user,
	}))
}

// UpdateMyProfile handles PUT /api/profile/me with partial field updates.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req struct {
		Name *string `json:"name"`
		Bio  *string `json:"bio"`
		City *string `json:"city"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}
	if req.City != nil {
		fields["city"] = *req.City
	}
	if len(fields) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No fields to update"))
	}

	if err := s.userRepo.UpdateFields(c.Context(), userID, fields); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"user": user,
	}))
}

// UploadAvatar handles POST /api/profile/me/avatar: the new image is uploaded
// first, the user row is pointed at it, and the previous object is removed
// best-effort.
func (s *Server) UploadAvatar(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("User", userID))
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("No file uploaded"))
	}

	contentType := file.Header.Get("Content-Type")
	if !storage.IsImageMIME(contentType) {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Avatar must be an image"))
	}

	src, err := file.Open()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
	}

	objectPath := storage.ObjectName("avatars", file.Filename)
	url, err := s.store.Upload(c.Context(), objectPath, content, contentType)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	oldURL := user.AvatarURL
	if err := s.userRepo.UpdateFields(c.Context(), userID, map[string]any{"avatar_url": url}); err != nil {
		// The row was not updated; don't leave the new object orphaned.
		if rerr := s.store.Remove(c.Context(), objectPath); rerr != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to remove avatar object after DB error",
				slog.String("path", objectPath), slog.String("error", rerr.Error()))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if oldURL != "" {
		if oldPath, ok := s.store.PathFromURL(oldURL); ok {
			if rerr := s.store.Remove(c.Context(), oldPath); rerr != nil {
				middleware.Logger.WarnContext(c.UserContext(), "failed to remove previous avatar object",
					slog.String("path", oldPath), slog.String("error", rerr.Error()))
			}
		}
	}

	user.AvatarURL = url
	return c.JSON(models.Success(fiber.Map{
		"user": user,
	}))
}
