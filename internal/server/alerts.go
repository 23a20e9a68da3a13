package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

// handleAlertPreview shows what the next sweep would send the caller.
func (s *Server) handleAlertPreview(c *fiber.Ctx) error {
	if s.deps.Preview == nil {
		return fiber.ErrNotFound
	}
	plan, err := s.deps.Preview.Preview(c.UserContext(), *currentUser(c))
	if err != nil {
		return err
	}
	if plan.Notifications == nil {
		plan.Notifications = []model.PendingNotification{}
	}
	return c.JSON(plan)
}

func (s *Server) handleSweep(c *fiber.Ctx) error {
	if !s.deps.Sweeps.RunNow(c.UserContext(), model.TriggerManual) {
		return message(c, fiber.StatusConflict, "Alert sweep already running")
	}
	s.logger.Info("manual sweep started", "request_id", requestID(c))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Alert sweep started"})
}

func (s *Server) handleSweepStatus(c *fiber.Ctx) error {
	resp := fiber.Map{
		"state":     s.deps.Sweeps.State(),
		"next_fire": s.deps.Sweeps.NextFire(s.now()),
	}
	if report, ok := s.deps.Sweeps.LastReport(); ok {
		resp["last_report"] = report
	}
	return c.JSON(resp)
}
