package server

import (
	cryptoRand "crypto/rand"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"
	"time"

	"portal/internal/mailer"
	"portal/internal/middleware"
	"portal/internal/models"
	"portal/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	verifyCodeTTL = 10 * time.Minute
	resetTokenTTL = 15 * time.Minute
)

// RequestPasswordReset handles POST /api/users/recover.
// The response is identical whether or not the account exists.
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email is required"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	if user != nil {
		token, terr := s.generateToken(user.ID, "reset", resetTokenTTL)
		if terr != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(terr))
		}

		link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.config.PublicBaseURL, "/"), token)
		if merr := s.mailer.Send(user.Email, "Reset your password",
			mailer.PasswordResetHTML(link, resetTokenTTL)); merr != nil {
			middleware.Logger.WarnContext(c.UserContext(), "failed to send reset email",
				slog.String("error", merr.Error()))
		}
	}

	return c.JSON(models.Success(fiber.Map{
		"message": "If the account exists, a reset link has been sent",
	}))
}

// ConfirmPasswordReset handles POST /api/users/recover/confirm
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Token and password are required"))
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	claims, err := s.parseToken(req.Token, "reset")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}
	sub, _ := claims["sub"].(string)
	userID, perr := strconv.ParseUint(sub, 10, 32)
	if perr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid user ID in token"))
	}

	user, err := s.userRepo.GetByID(c.Context(), uint(userID))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("User", userID))
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if err := s.userRepo.UpdateFields(c.Context(), user.ID, map[string]any{"password": hashed}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(models.Success(fiber.Map{
		"message": "Password updated",
	}))
}

// RequestVerification handles POST /api/users/verify
func (s *Server) RequestVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email is required"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("User", req.Email))
	}
	if user.Verified {
		return c.JSON(models.Success(fiber.Map{
			"message": "Email already verified",
		}))
	}

	if err := s.sendVerificationCode(c, user); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(models.Success(fiber.Map{
		"message": "Verification code sent",
	}))
}

// ConfirmVerification handles POST /api/users/verify/confirm
func (s *Server) ConfirmVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Code == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and code are required"))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("User", req.Email))
	}

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(fmt.Errorf("verification store unavailable")))
	}

	key := fmt.Sprintf("verify_code:%d", user.ID)
	stored, err := s.redis.Get(c.Context(), key).Result()
	if err != nil || subtle.ConstantTimeCompare([]byte(stored), []byte(req.Code)) != 1 {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid or expired verification code"))
	}

	if err := s.userRepo.UpdateFields(c.Context(), user.ID, map[string]any{"verified": true}); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	s.redis.Del(c.Context(), key)

	return c.JSON(models.Success(fiber.Map{
		"message": "Email verified",
	}))
}

// randDigits returns n cryptographically random decimal digits.
func randDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		x, err := cryptoRand.Int(cryptoRand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + x.Int64()))
	}
	return b.String(), nil
}
