package server

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
)

const userKey = "user"

// requireUser resolves the bearer access token to the calling user.
func (s *Server) requireUser(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return message(c, fiber.StatusUnauthorized, "Not authorized, no token")
	}

	userID, err := s.deps.Tokens.ParseAccess(token)
	if err != nil {
		return message(c, fiber.StatusUnauthorized, "Not authorized, token failed")
	}
	user, err := s.deps.Store.GetUser(c.UserContext(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusUnauthorized, "Not authorized, user not found")
	}
	if err != nil {
		return err
	}

	c.Locals(userKey, user)
	return c.Next()
}

func currentUser(c *fiber.Ctx) *model.User {
	u, _ := c.Locals(userKey).(*model.User)
	return u
}

// requireAdmin checks the X-Admin-Token header. Without a configured token
// the admin routes do not exist.
func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if s.opts.AdminToken == "" || s.deps.Sweeps == nil {
		return fiber.ErrNotFound
	}
	got := c.Get("X-Admin-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.AdminToken)) != 1 {
		s.logger.Warn("admin token rejected", "request_id", requestID(c), "ip", c.IP())
		return message(c, fiber.StatusUnauthorized, "Not authorized")
	}
	return c.Next()
}
