package server

import (
	"errors"
	"io"
	"log/slog"

	"portal/internal/middleware"
	"portal/internal/models"
	"portal/internal/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetNews handles GET /api/news
func (s *Server) GetNews(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	items, err := s.newsRepo.List(c.Context(), page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"news": items,
	}))
}

// CreateNews handles POST /api/news (multipart form with an optional image).
func (s *Server) CreateNews(c *fiber.Ctx) error {
	title := c.FormValue("title")
	if title == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title is required"))
	}

	item := &models.News{
		Title:  title,
		Source: c.FormValue("source"),
		URL:    c.FormValue("url"),
	}

	var objectPath string
	if file, ferr := c.FormFile("image"); ferr == nil {
		contentType := file.Header.Get("Content-Type")
		if !storage.IsImageMIME(contentType) {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("News image must be an image"))
		}

		src, oerr := file.Open()
		if oerr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unable to read uploaded file"))
		}
		content, rerr := io.ReadAll(src)
		_ = src.Close()
		if rerr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Unable to read uploaded file"))
		}

		objectPath = storage.ObjectName("news", file.Filename)
		url, uerr := s.store.Upload(c.Context(), objectPath, content, contentType)
		if uerr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(uerr))
		}
		item.ImageURL = url
	}

	if err := s.newsRepo.Create(c.Context(), item); err != nil {
		if objectPath != "" {
			if rerr := s.store.Remove(c.Context(), objectPath); rerr != nil {
				middleware.Logger.WarnContext(c.UserContext(), "failed to remove news image after DB error",
					slog.String("path", objectPath), slog.String("error", rerr.Error()))
			}
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(fiber.Map{
		"news": item,
	}))
}

// DeleteNews handles DELETE /api/news/:id. The storage path of the cover
// image is derived back out of its public URL before the object is removed.
func (s *Server) DeleteNews(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	item, err := s.newsRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("News", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if err := s.newsRepo.Delete(c.Context(), id); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if item.ImageURL != "" {
		if path, ok := s.store.PathFromURL(item.ImageURL); ok {
			if rerr := s.store.Remove(c.Context(), path); rerr != nil {
				middleware.Logger.WarnContext(c.UserContext(), "failed to remove news image object",
					slog.String("path", path), slog.String("error", rerr.Error()))
			}
		}
	}

	return c.JSON(models.Success(fiber.Map{
		"message": "News deleted",
	}))
}
