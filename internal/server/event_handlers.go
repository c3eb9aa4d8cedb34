package server

import (
	"errors"
	"strings"
	"time"

	"portal/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// GetEvents handles GET /api/events. Only APPROVED events are listed unless
// status=ALL or an explicit status is requested.
func (s *Server) GetEvents(c *fiber.Ctx) error {
	page := parsePagination(c, 20)

	status := models.EventStatusApproved
	if q := c.Query("status"); q != "" {
		if strings.EqualFold(q, "ALL") {
			status = ""
		} else {
			status = models.EventStatus(strings.ToUpper(q))
		}
	}

	events, err := s.eventRepo.List(c.Context(), status, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"events": events,
	}))
}

// CreateEvent handles POST /api/events. New events always start PENDING.
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Location    string `json:"location"`
		StartDate   string `json:"startDate"`
		EndDate     string `json:"endDate"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if req.Title == "" || req.StartDate == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Title and start date are required"))
	}

	startDate, err := parseEventDate(req.StartDate)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid start date"))
	}

	event := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		StartDate:   startDate,
		Status:      models.EventStatusPending,
	}

	if req.EndDate != "" {
		endDate, perr := parseEventDate(req.EndDate)
		if perr != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid end date"))
		}
		event.EndDate = &endDate
	}

	if err := s.eventRepo.Create(c.Context(), event); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.Status(fiber.StatusCreated).JSON(models.Success(fiber.Map{
		"event": event,
	}))
}

// ApproveEvent handles PATCH /api/events/:id/approve. Approving an approved
// event returns the stored row unchanged.
func (s *Server) ApproveEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	event, err := s.eventRepo.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Event", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if event.Status != models.EventStatusApproved {
		event.Status = models.EventStatusApproved
		if err := s.eventRepo.Save(c.Context(), event); err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
	}

	return c.JSON(models.Success(fiber.Map{
		"event": event,
	}))
}

// DeleteEvent handles DELETE /api/events/:id
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.eventRepo.Delete(c.Context(), id); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"message": "Event deleted",
	}))
}

// parseEventDate accepts RFC3339 timestamps as-is and normalizes date-only
// strings to 12:00 UTC of that day, so the calendar date survives rendering
// in any timezone.
func parseEventDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(time.RFC3339, raw)
}
