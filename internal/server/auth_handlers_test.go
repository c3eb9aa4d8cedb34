package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"portal/internal/config"
	"portal/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test_secret",
		PublicBaseURL: "http://localhost:8460",
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(repo *MockUserRepository, mail *MockMailer)
		expectedStatus int
		createCalled   bool
	}{
		{
			name: "Success",
			body: map[string]string{
				"name":     "Test User",
				"username": "testuser",
				"email":    "test@example.com",
				"password": "Password123",
			},
			mockSetup: func(repo *MockUserRepository, mail *MockMailer) {
				repo.On("GetByEmailOrUsername", mock.Anything, "test@example.com", "testuser").Return(nil, nil)
				repo.On("Create", mock.Anything, mock.Anything).Return(nil)
				mail.On("Send", "test@example.com", mock.Anything, mock.Anything).Return(nil)
			},
			expectedStatus: http.StatusCreated,
			createCalled:   true,
		},
		{
			name: "Duplicate user is rejected before any credential work",
			body: map[string]string{
				"name":     "Test User",
				"username": "testuser",
				"email":    "exists@example.com",
				"password": "Password123",
			},
			mockSetup: func(repo *MockUserRepository, mail *MockMailer) {
				repo.On("GetByEmailOrUsername", mock.Anything, "exists@example.com", "testuser").
					Return(&models.User{ID: 1}, nil)
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Missing fields",
			body: map[string]string{
				"email": "test@example.com",
			},
			mockSetup:      func(repo *MockUserRepository, mail *MockMailer) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Weak password",
			body: map[string]string{
				"name":     "Test User",
				"username": "testuser",
				"email":    "test@example.com",
				"password": "short",
			},
			mockSetup:      func(repo *MockUserRepository, mail *MockMailer) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "Mailer failure does not fail registration",
			body: map[string]string{
				"name":     "Test User",
				"username": "testuser",
				"email":    "test@example.com",
				"password": "Password123",
			},
			mockSetup: func(repo *MockUserRepository, mail *MockMailer) {
				repo.On("GetByEmailOrUsername", mock.Anything, "test@example.com", "testuser").Return(nil, nil)
				repo.On("Create", mock.Anything, mock.Anything).Return(nil)
				mail.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)
			},
			expectedStatus: http.StatusCreated,
			createCalled:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			mockRepo := new(MockUserRepository)
			mockMail := new(MockMailer)
			tt.mockSetup(mockRepo, mockMail)

			s := &Server{
				config:   testConfig(),
				userRepo: mockRepo,
				mailer:   mockMail,
			}
			app.Post("/register", s.Register)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if !tt.createCalled {
				mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("Password123"), bcrypt.MinCost)
	assert.NoError(t, err)

	tests := []struct {
		name           string
		body           map[string]string
		mockSetup      func(repo *MockUserRepository)
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{"email": "test@example.com", "password": "Password123"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("GetByEmail", mock.Anything, "test@example.com").Return(&models.User{
					ID:       1,
					Email:    "test@example.com",
					Password: string(hashed),
					Verified: true,
				}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Unknown email",
			body: map[string]string{"email": "nobody@example.com", "password": "Password123"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Wrong password",
			body: map[string]string{"email": "test@example.com", "password": "WrongPass1"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("GetByEmail", mock.Anything, "test@example.com").Return(&models.User{
					ID:       1,
					Email:    "test@example.com",
					Password: string(hashed),
					Verified: true,
				}, nil)
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "Unverified email",
			body: map[string]string{"email": "test@example.com", "password": "Password123"},
			mockSetup: func(repo *MockUserRepository) {
				repo.On("GetByEmail", mock.Anything, "test@example.com").Return(&models.User{
					ID:       1,
					Email:    "test@example.com",
					Password: string(hashed),
					Verified: false,
				}, nil)
			},
			expectedStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			mockRepo := new(MockUserRepository)
			tt.mockSetup(mockRepo)

			s := &Server{
				config:   testConfig(),
				userRepo: mockRepo,
			}
			app.Post("/login", s.Login)

			body, _ := json.Marshal(tt.body)
			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			assert.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusOK {
				var payload map[string]any
				assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
				assert.Equal(t, true, payload["success"])
				assert.NotEmpty(t, payload["access_token"])
				assert.NotEmpty(t, payload["refresh_token"])
			}
		})
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	app := fiber.New()
	s := &Server{config: testConfig()}
	app.Post("/refresh", s.Refresh)

	// A token of type "access" must not be accepted as a refresh token.
	accessToken, err := s.generateToken(1, "access", accessTokenTTL)
	assert.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refresh_token": accessToken})
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefreshIssuesAccessToken(t *testing.T) {
	app := fiber.New()
	s := &Server{config: testConfig()}
	app.Post("/refresh", s.Refresh)

	refreshToken, err := s.generateToken(42, "refresh", refreshTokenTTL)
	assert.NoError(t, err)

	body, _ := json.Marshal(map[string]string{"refresh_token": refreshToken})
	req := httptest.NewRequest(http.MethodPost, "/refresh", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	assert.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var payload map[string]any
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotEmpty(t, payload["access_token"])

	claims, err := s.parseToken(payload["access_token"].(string), "access")
	assert.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
}

func TestAuthRequired(t *testing.T) {
	s := &Server{config: testConfig()}

	app := fiber.New()
	app.Get("/protected", s.AuthRequired(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"userID": c.Locals("userID")})
	})

	t.Run("Missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Valid token", func(t *testing.T) {
		token, err := s.generateToken(7, "access", accessTokenTTL)
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("Refresh token rejected on protected route", func(t *testing.T) {
		token, err := s.generateToken(7, "refresh", refreshTokenTTL)
		assert.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		assert.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
