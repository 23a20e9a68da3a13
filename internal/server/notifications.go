package server

import (
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/policy"
)

const maxNotificationsPerKind = 10

type notification struct {
	Type      model.AlertKind `json:"type"`
	Product   model.Product   `json:"product"`
	Message   string          `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
}

// handleNotifications lists the caller's current low-stock and expiring
// products as in-app notifications, newest first.
func (s *Server) handleNotifications(c *fiber.Ctx) error {
	user := currentUser(c)
	ctx := c.UserContext()
	now := s.now()

	low, err := s.deps.Store.FindLowStock(ctx, user.ID, user.Preferences.LowStockThreshold)
	if err != nil {
		return err
	}
	expiring, err := s.deps.Store.FindExpiringWithin(ctx, user.ID, now, policy.ExpiryHorizonDays)
	if err != nil {
		return err
	}

	out := make([]notification, 0, maxNotificationsPerKind*2)
	for _, p := range first(low, maxNotificationsPerKind) {
		out = append(out, notification{
			Type:      model.KindLowStock,
			Product:   p,
			Message:   fmt.Sprintf("%s is low on stock (%d %s remaining)", p.ProductName, p.Quantity, p.Unit),
			CreatedAt: p.UpdatedAt,
		})
	}
	for _, p := range first(expiring, maxNotificationsPerKind) {
		out = append(out, notification{
			Type:      model.KindExpiringSoon,
			Product:   p,
			Message:   fmt.Sprintf("%s expires in %d days", p.ProductName, policy.DaysUntil(*p.ExpiryDate, now)),
			CreatedAt: p.UpdatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return c.JSON(fiber.Map{"notifications": out})
}

func first(products []model.Product, n int) []model.Product {
	if len(products) > n {
		return products[:n]
	}
	return products
}
