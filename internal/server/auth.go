package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/internal/auth"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
)

const refreshCookie = "refresh_token"

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	ShopName    string `json:"shop_name"`
	PhoneNumber string `json:"phone_number"`
}

func (s *Server) handleSignup(c *fiber.Ctx) error {
	var req signupRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var v validator
	v.email(req.Email, "email")
	v.check(len(req.Password) >= 6, "password", "Password must be at least 6 characters")
	v.required(req.ShopName, "shop_name", "Shop name is required")
	v.required(req.PhoneNumber, "phone_number", "Phone number is required")
	if done, err := v.respond(c); done {
		return err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return err
	}
	user := &model.User{
		Email:        req.Email,
		PasswordHash: hash,
		ShopName:     strings.TrimSpace(req.ShopName),
		PhoneNumber:  strings.TrimSpace(req.PhoneNumber),
		Preferences:  model.DefaultPreferences(),
	}
	ctx := c.UserContext()
	if err := s.deps.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicateEmail) {
			return message(c, fiber.StatusBadRequest, "Email already registered")
		}
		return err
	}

	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	if err := s.deps.OTPs.Put(ctx, user.Email, code, s.opts.OTPTTL); err != nil {
		return err
	}
	s.sendVerification(c, user.Email, code)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully. Please check your email for verification code.",
		"user_id": user.ID,
	})
}

// sendVerification mails the code. Failures are only logged, so the account
// stays unverified and cannot log in until it receives a code.
func (s *Server) sendVerification(c *fiber.Ctx, email, code string) {
	if s.deps.Mailer == nil {
		s.logger.Warn("verification email not sent, mailer not configured", "user_email", email)
		return
	}
	if err := s.deps.Mailer.SendVerification(c.UserContext(), email, code, s.opts.OTPTTL); err != nil {
		s.logger.Error("send verification email failed", "user_email", email, "error", err)
	}
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

func (s *Server) handleVerifyEmail(c *fiber.Ctx) error {
	var req verifyRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	ctx := c.UserContext()

	switch err := s.deps.OTPs.Verify(ctx, email, strings.TrimSpace(req.OTP)); {
	case errors.Is(err, auth.ErrOTPNotFound):
		return message(c, fiber.StatusBadRequest, "OTP expired or not found")
	case errors.Is(err, auth.ErrOTPMismatch):
		return message(c, fiber.StatusBadRequest, "Invalid OTP")
	case err != nil:
		return err
	}

	user, err := s.deps.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusBadRequest, "OTP expired or not found")
	}
	if err != nil {
		return err
	}
	if err := s.deps.Store.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}
	user.EmailVerified = true

	access, err := s.issueSession(c, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":      "Email verified successfully",
		"access_token": access,
		"user":         user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	var v validator
	v.email(strings.TrimSpace(req.Email), "email")
	v.required(req.Password, "password", "Password is required")
	if done, err := v.respond(c); done {
		return err
	}

	user, err := s.deps.Store.GetUserByEmail(c.UserContext(), req.Email)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if err != nil {
		return err
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		return message(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if !user.EmailVerified {
		return message(c, fiber.StatusForbidden, "Please verify your email first")
	}

	access, err := s.issueSession(c, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":      "Login successful",
		"access_token": access,
		"user":         user,
	})
}

// issueSession sets the refresh cookie and returns a fresh access token.
func (s *Server) issueSession(c *fiber.Ctx, userID string) (string, error) {
	access, err := s.deps.Tokens.IssueAccess(userID)
	if err != nil {
		return "", err
	}
	refresh, err := s.deps.Tokens.IssueRefresh(userID)
	if err != nil {
		return "", err
	}
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    refresh,
		Path:     "/api/auth",
		HTTPOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
		Expires:  s.now().Add(s.deps.Tokens.RefreshTTL()),
	})
	return access, nil
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	token := c.Cookies(refreshCookie)
	if token == "" {
		return message(c, fiber.StatusUnauthorized, "No refresh token")
	}
	userID, err := s.deps.Tokens.ParseRefresh(token)
	if err != nil {
		return message(c, fiber.StatusUnauthorized, "Invalid refresh token")
	}
	access, err := s.deps.Tokens.IssueAccess(userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"access_token": access})
}

func (s *Server) handleLogout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/api/auth",
		HTTPOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
	return message(c, fiber.StatusOK, "Logout successful")
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"user": currentUser(c)})
}

type preferencesRequest struct {
	LowStockThreshold *int `json:"low_stock_threshold"`
	Notifications     *struct {
		Email *bool `json:"email"`
		SMS   *bool `json:"sms"`
	} `json:"notifications"`
	PhoneNumber *string `json:"phone_number"`
}

func (s *Server) handleUpdatePreferences(c *fiber.Ctx) error {
	var req preferencesRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	user := currentUser(c)
	prefs := user.Preferences
	phone := user.PhoneNumber

	var v validator
	if req.LowStockThreshold != nil {
		v.check(*req.LowStockThreshold >= 0, "low_stock_threshold", "Threshold must be zero or more")
		prefs.LowStockThreshold = *req.LowStockThreshold
	}
	if done, err := v.respond(c); done {
		return err
	}
	if n := req.Notifications; n != nil {
		if n.Email != nil {
			prefs.Notifications.Email = *n.Email
		}
		if n.SMS != nil {
			prefs.Notifications.SMS = *n.SMS
		}
	}
	if req.PhoneNumber != nil {
		phone = strings.TrimSpace(*req.PhoneNumber)
	}

	if err := s.deps.Store.UpdatePreferences(c.UserContext(), user.ID, prefs, phone); err != nil {
		return err
	}
	user.Preferences = prefs
	user.PhoneNumber = phone
	return c.JSON(fiber.Map{
		"message": "Preferences updated successfully",
		"user":    user,
	})
}
