package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portal/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestParseEventDate(t *testing.T) {
	t.Run("Date-only normalizes to noon UTC", func(t *testing.T) {
		got, err := parseEventDate("2025-03-10")
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), got)
	})

	t.Run("RFC3339 is kept as-is", func(t *testing.T) {
		got, err := parseEventDate("2025-03-10T18:30:00+02:00")
		assert.NoError(t, err)
		want, _ := time.Parse(time.RFC3339, "2025-03-10T18:30:00+02:00")
		assert.True(t, got.Equal(want))
	})

	t.Run("Garbage is rejected", func(t *testing.T) {
		_, err := parseEventDate("next tuesday")
		assert.Error(t, err)
	})
}

func TestCreateEvent(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(repo *MockEventRepository)
		expectedStatus int
	}{
		{
			name: "Success starts pending",
			body: map[string]string{
				"title":     "Street market",
				"startDate": "2025-03-10",
			},
			mockSetup: func(repo *MockEventRepository) {
				repo.On("Create", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
					return e.Status == models.EventStatusPending &&
						e.StartDate.Equal(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
				})).Return(nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Missing title",
			body:           map[string]string{"startDate": "2025-03-10"},
			mockSetup:      func(repo *MockEventRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Missing start date",
			body:           map[string]string{"title": "Street market"},
			mockSetup:      func(repo *MockEventRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Invalid start date",
			body: map[string]string{
				"title":     "Street market",
				"startDate": "soon",
			},
			mockSetup:      func(repo *MockEventRepository) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			eventRepo := new(MockEventRepository)
			tt.mockSetup(eventRepo)

			s := &Server{config: testConfig(), eventRepo: eventRepo}
			app.Post("/events", s.CreateEvent)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			eventRepo.AssertExpectations(t)
			if tt.expectedStatus != http.StatusCreated {
				eventRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestApproveEventIdempotent(t *testing.T) {
	app := fiber.New()
	eventRepo := new(MockEventRepository)

	eventRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.Event{
		ID:     1,
		Title:  "Street market",
		Status: models.EventStatusApproved,
	}, nil)

	s := &Server{config: testConfig(), eventRepo: eventRepo}
	app.Patch("/events/:id/approve", s.ApproveEvent)

	req := httptest.NewRequest(http.MethodPatch, "/events/1/approve", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	eventRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestApproveEventFlipsPending(t *testing.T) {
	app := fiber.New()
	eventRepo := new(MockEventRepository)

	eventRepo.On("GetByID", mock.Anything, uint(1)).Return(&models.Event{
		ID:     1,
		Title:  "Street market",
		Status: models.EventStatusPending,
	}, nil)
	eventRepo.On("Save", mock.Anything, mock.MatchedBy(func(e *models.Event) bool {
		return e.Status == models.EventStatusApproved
	})).Return(nil)

	s := &Server{config: testConfig(), eventRepo: eventRepo}
	app.Patch("/events/:id/approve", s.ApproveEvent)

	req := httptest.NewRequest(http.MethodPatch, "/events/1/approve", nil)
	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	eventRepo.AssertExpectations(t)
}

func TestGetEventsStatusFilter(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		expectedStatus models.EventStatus
	}{
		{name: "Default lists approved only", query: "", expectedStatus: models.EventStatusApproved},
		{name: "status=ALL disables the filter", query: "?status=ALL", expectedStatus: ""},
		{name: "Explicit pending", query: "?status=pending", expectedStatus: models.EventStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			eventRepo := new(MockEventRepository)
			eventRepo.On("List", mock.Anything, tt.expectedStatus, mock.Anything, mock.Anything).
				Return([]*models.Event{}, nil)

			s := &Server{config: testConfig(), eventRepo: eventRepo}
			app.Get("/events", s.GetEvents)

			req := httptest.NewRequest(http.MethodGet, "/events"+tt.query, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			eventRepo.AssertExpectations(t)
		})
	}
}
