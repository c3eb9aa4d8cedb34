package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strings"

	"portal/internal/models"
	"portal/internal/repository"
	"portal/internal/service"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetPosts handles GET /api/posts.
// Without a status parameter only APPROVED posts are returned; status=ALL
// disables the filter. alert=true and hasReports=true narrow further, and
// includeReports=true eager-loads each post's reports.
func (s *Server) GetPosts(c *fiber.Ctx) error {
	ctx := c.Context()
	page := parsePagination(c, 20)

	filter := repository.PostListFilter{
		Status:         models.PostStatusApproved,
		AlertOnly:      c.QueryBool("alert", false),
		HasReports:     c.QueryBool("hasReports", false),
		IncludeReports: c.QueryBool("includeReports", false),
		Limit:          page.Limit,
		Offset:         page.Offset,
	}
	if status := c.Query("status"); status != "" {
		if strings.EqualFold(status, "ALL") {
			filter.Status = ""
		} else {
			filter.Status = models.PostStatus(strings.ToUpper(status))
		}
	}

	// Anything beyond the public APPROVED feed is a moderation view.
	moderationView := filter.Status != models.PostStatusApproved ||
		filter.HasReports || filter.IncludeReports
	if moderationView && !s.hasValidAccessToken(c) {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	posts, err := s.postRepo.List(ctx, filter)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"posts": posts,
	}))
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postRepo.GetByID(c.Context(), id, true)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"post": post,
	}))
}

// CreatePost handles POST /api/posts (multipart form with up to 6 media files).
func (s *Server) CreatePost(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	in := service.CreatePostInput{
		UserID:       userID,
		Content:      c.FormValue("content"),
		Category:     c.FormValue("category"),
		Location:     c.FormValue("location"),
		PollQuestion: c.FormValue("pollQuestion"),
	}

	if raw := c.FormValue("eventDate"); raw != "" {
		t, perr := parseEventDate(raw)
		if perr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid event date"))
		}
		in.EventDate = &t
	}

	if raw := c.FormValue("pollOptions"); raw != "" {
		if !json.Valid([]byte(raw)) {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Poll options must be valid JSON"))
		}
		in.PollOptions = json.RawMessage(raw)
	}

	if form, ferr := c.MultipartForm(); ferr == nil && form != nil {
		files := form.File["media"]
		if len(files) > service.MaxPostMediaFiles {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("At most 6 media files are allowed"))
		}
		for _, fh := range files {
			mf, rerr := readMultipartFile(fh)
			if rerr != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Unable to read uploaded file"))
			}
			in.Files = append(in.Files, mf)
		}
	}

	post, err := s.postService.Create(c.UserContext(), in)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(fiber.Map{
		"post": post,
	}))
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"message": "Post deleted",
	}))
}

// ApprovePost handles PATCH /api/posts/:id/approve
func (s *Server) ApprovePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Approve(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"post": post,
	}))
}

// RejectPost handles PATCH /api/posts/:id/reject
func (s *Server) RejectPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	post, err := s.postService.Reject(c.UserContext(), id, req.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"post": post,
	}))
}

// ToggleAlert handles PATCH /api/posts/:id/alert
func (s *Server) ToggleAlert(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.ToggleAlert(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"post": post,
	}))
}

// LikePost handles POST /api/posts/:id/like. An optional body {"delta": -1}
// retracts a like; the counter never goes below zero.
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	delta := 1
	var req struct {
		Delta *int `json:"delta"`
	}
	if perr := c.BodyParser(&req); perr == nil && req.Delta != nil {
		delta = *req.Delta
	}
	if delta != 1 && delta != -1 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Delta must be 1 or -1"))
	}

	likes, err := s.postRepo.IncrementLikes(c.Context(), id, delta)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"likes": likes,
	}))
}

// SharePost handles POST /api/posts/:id/share
func (s *Server) SharePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	shares, err := s.postRepo.IncrementShares(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"shares": shares,
	}))
}

// ReportPost handles POST /api/posts/:id/report
func (s *Server) ReportPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	report, err := s.postService.Report(c.UserContext(), id, req.Reason)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Post", id))
		}
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(fiber.Map{
		"report": report,
	}))
}

// GetReportedPosts handles GET /api/posts/reports/all
func (s *Server) GetReportedPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	posts, err := s.postRepo.List(c.Context(), repository.PostListFilter{
		HasReports:     true,
		IncludeReports: true,
		Limit:          page.Limit,
		Offset:         page.Offset,
	})
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"posts": posts,
	}))
}

// readMultipartFile loads one uploaded file into memory for the service layer.
func readMultipartFile(fh *multipart.FileHeader) (service.MediaFile, error) {
	src, err := fh.Open()
	if err != nil {
		return service.MediaFile{}, err
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return service.MediaFile{}, err
	}

	return service.MediaFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// mapServiceError translates AppError codes to HTTP status codes.
func mapServiceError(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case "VALIDATION_ERROR":
			return fiber.StatusBadRequest
		case "UNAUTHORIZED":
			return fiber.StatusUnauthorized
		case "FORBIDDEN":
			return fiber.StatusForbidden
		case "NOT_FOUND":
			return fiber.StatusNotFound
		case "CONFLICT":
			return fiber.StatusConflict
		}
	}
	return fiber.StatusInternalServerError
}
