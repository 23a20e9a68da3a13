package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/pkg/barcode"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
)

type barcodeRequest struct {
	Barcode string `json:"barcode"`
}

// handleBarcodeLookup checks the caller's inventory first and then the
// external catalog. External failures degrade to "not found".
func (s *Server) handleBarcodeLookup(c *fiber.Ctx) error {
	var req barcodeRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	code := strings.TrimSpace(req.Barcode)
	if code == "" {
		return message(c, fiber.StatusBadRequest, "Barcode is required")
	}

	ctx := c.UserContext()
	product, err := s.deps.Store.FindProductByBarcode(ctx, currentUser(c).ID, code)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"found": true, "source": "inventory", "product": product})
	case !errors.Is(err, storage.ErrNotFound):
		return err
	}

	if s.deps.Barcode != nil {
		info, err := s.deps.Barcode.Lookup(ctx, code)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"found": true, "source": "api", "product": info})
		case !errors.Is(err, barcode.ErrNotFound):
			s.logger.Warn("barcode lookup failed", "request_id", requestID(c), "barcode", code, "error", err)
		}
	}

	return c.JSON(fiber.Map{
		"found":   false,
		"message": "Product not found. You can add it manually.",
	})
}

type scanRequest struct {
	Barcode   string           `json:"barcode"`
	ProductID string           `json:"product_id"`
	Action    model.ScanAction `json:"action"`
}

func (s *Server) handleRecordScan(c *fiber.Ctx) error {
	var req scanRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	var v validator
	v.required(req.Barcode, "barcode", "Barcode is required")
	v.check(req.Action == "" || req.Action.Valid(), "action", "Action must be view, update or add")
	if done, err := v.respond(c); done {
		return err
	}

	scan := &model.ScanRecord{
		UserID:    currentUser(c).ID,
		ProductID: strings.TrimSpace(req.ProductID),
		Barcode:   strings.TrimSpace(req.Barcode),
		Action:    req.Action,
	}
	if err := s.deps.Store.RecordScan(c.UserContext(), scan); err != nil {
		return err
	}
	return message(c, fiber.StatusOK, "Scan recorded successfully")
}

func (s *Server) handleScanHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 100 {
		limit = 50
	}
	scans, err := s.deps.Store.ListScans(c.UserContext(), currentUser(c).ID, limit)
	if err != nil {
		return err
	}
	if scans == nil {
		scans = []model.ScanRecord{}
	}
	return c.JSON(fiber.Map{"scans": scans})
}
