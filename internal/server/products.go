package server

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/policy"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
)

// productInput is the writable part of a product. Absent fields are left
// unchanged on update.
type productInput struct {
	CategoryID      *string    `json:"category_id"`
	Barcode         *string    `json:"barcode"`
	ProductName     *string    `json:"product_name"`
	Brand           *string    `json:"brand"`
	BatchNumber     *string    `json:"batch_number"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	ManufactureDate *time.Time `json:"manufacture_date"`
	Quantity        *int       `json:"quantity"`
	Unit            *string    `json:"unit"`
	CostPrice       *float64   `json:"cost_price"`
	SellingPrice    *float64   `json:"selling_price"`
	Supplier        *string    `json:"supplier"`
	LastRestockDate *time.Time `json:"last_restock_date"`
	ImageURL        *string    `json:"image_url"`
}

func (in productInput) validate(create bool) *validator {
	v := &validator{}
	if create || in.ProductName != nil {
		v.check(in.ProductName != nil && strings.TrimSpace(*in.ProductName) != "", "product_name", "Product name is required")
	}
	if create || in.CategoryID != nil {
		v.check(in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) != "", "category_id", "Valid category ID is required")
	}
	if create {
		v.check(in.Quantity != nil, "quantity", "Quantity must be a number")
	}
	if in.Quantity != nil {
		v.check(*in.Quantity >= 0, "quantity", "Quantity cannot be negative")
	}
	if in.CostPrice != nil {
		v.check(*in.CostPrice >= 0, "cost_price", "Cost price cannot be negative")
	}
	if in.SellingPrice != nil {
		v.check(*in.SellingPrice >= 0, "selling_price", "Selling price cannot be negative")
	}
	return v
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setTime(dst **time.Time, src *time.Time) {
	if src != nil {
		t := src.UTC()
		*dst = &t
	}
}

func (in productInput) apply(p *model.Product) {
	setString(&p.CategoryID, in.CategoryID)
	setString(&p.Barcode, in.Barcode)
	setString(&p.ProductName, in.ProductName)
	setString(&p.Brand, in.Brand)
	setString(&p.BatchNumber, in.BatchNumber)
	setString(&p.Unit, in.Unit)
	setString(&p.Supplier, in.Supplier)
	setString(&p.ImageURL, in.ImageURL)
	setTime(&p.ExpiryDate, in.ExpiryDate)
	setTime(&p.ManufactureDate, in.ManufactureDate)
	setTime(&p.LastRestockDate, in.LastRestockDate)
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
	if in.CostPrice != nil {
		p.CostPrice = *in.CostPrice
	}
	if in.SellingPrice != nil {
		p.SellingPrice = *in.SellingPrice
	}
}

// categoryUsable reports whether the user may file products under id.
func (s *Server) categoryUsable(c *fiber.Ctx, userID, id string) (bool, error) {
	cat, err := s.deps.Store.GetCategory(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cat.IsDefault || cat.UserID == userID, nil
}

func (s *Server) handleListProducts(c *fiber.Ctx) error {
	user := currentUser(c)
	filter := model.ProductFilter{
		UserID:      user.ID,
		Search:      strings.TrimSpace(c.Query("search")),
		CategoryID:  c.Query("category"),
		StockLevel:  model.StockLevel(c.Query("stock_level")),
		Threshold:   user.Preferences.LowStockThreshold,
		ExpiryRange: model.ExpiryRange(c.Query("expiry_range")),
		Now:         s.now(),
		SortBy:      c.Query("sort_by", "created_at"),
		Desc:        c.Query("order", "desc") == "desc",
		Page:        c.QueryInt("page", 1),
		Limit:       c.QueryInt("limit", 20),
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	products, total, err := s.deps.Store.ListProducts(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if products == nil {
		products = []model.Product{}
	}
	return c.JSON(fiber.Map{
		"products": products,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
			"pages": int(math.Ceil(float64(total) / float64(filter.Limit))),
		},
	})
}

func (s *Server) handleGetProduct(c *fiber.Ctx) error {
	product, err := s.deps.Store.GetProduct(c.UserContext(), currentUser(c).ID, c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Product not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"product": product})
}

func (s *Server) handleCreateProduct(c *fiber.Ctx) error {
	var in productInput
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	if done, err := in.validate(true).respond(c); done {
		return err
	}

	user := currentUser(c)
	ok, err := s.categoryUsable(c, user.ID, strings.TrimSpace(*in.CategoryID))
	if err != nil {
		return err
	}
	if !ok {
		return validationError(c, "category_id", "Valid category ID is required")
	}

	product := &model.Product{UserID: user.ID}
	in.apply(product)
	ctx := c.UserContext()
	if err := s.deps.Store.CreateProduct(ctx, product); err != nil {
		return err
	}
	s.recordScan(c, product, model.ScanAdd)

	created, err := s.deps.Store.GetProduct(ctx, user.ID, product.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Product created successfully",
		"product": created,
	})
}

func (s *Server) handleUpdateProduct(c *fiber.Ctx) error {
	var in productInput
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	if done, err := in.validate(false).respond(c); done {
		return err
	}

	user := currentUser(c)
	ctx := c.UserContext()
	product, err := s.deps.Store.GetProduct(ctx, user.ID, c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Product not found")
	}
	if err != nil {
		return err
	}
	if in.CategoryID != nil && strings.TrimSpace(*in.CategoryID) != product.CategoryID {
		ok, err := s.categoryUsable(c, user.ID, strings.TrimSpace(*in.CategoryID))
		if err != nil {
			return err
		}
		if !ok {
			return validationError(c, "category_id", "Valid category ID is required")
		}
	}

	before := *product
	in.apply(product)

	if err := s.deps.Store.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return message(c, fiber.StatusNotFound, "Product not found")
		}
		return err
	}
	for _, flag := range clearedAlertFlags(&before, product, user.Preferences.LowStockThreshold) {
		if _, err := s.deps.Store.SetAlertFlags(ctx, []string{product.ID}, flag, false); err != nil {
			return err
		}
	}
	s.recordScan(c, product, model.ScanUpdate)

	updated, err := s.deps.Store.GetProduct(ctx, user.ID, product.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Product updated successfully",
		"product": updated,
	})
}

// clearedAlertFlags lists the "already notified" markers whose condition no
// longer holds after an edit, so a later recurrence alerts again. Only these
// are written back; a flag a concurrent sweep just set is never overwritten.
func clearedAlertFlags(before, after *model.Product, threshold int) []model.FlagName {
	var cleared []model.FlagName
	if before.Alerts.LowStock && !policy.IsLowStock(after.Quantity, threshold) {
		cleared = append(cleared, model.FlagLowStock)
	}
	if before.Alerts.ExpiringSoon && !sameTime(before.ExpiryDate, after.ExpiryDate) {
		cleared = append(cleared, model.FlagExpiringSoon)
	}
	return cleared
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *Server) handleDeleteProduct(c *fiber.Ctx) error {
	err := s.deps.Store.DeleteProduct(c.UserContext(), currentUser(c).ID, c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return message(c, fiber.StatusNotFound, "Product not found")
	}
	if err != nil {
		return err
	}
	return message(c, fiber.StatusOK, "Product deleted successfully")
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	user := currentUser(c)
	stats, err := s.deps.Store.ProductStats(c.UserContext(), user.ID, user.Preferences.LowStockThreshold, s.now())
	if err != nil {
		return err
	}
	if stats.CategoryStats == nil {
		stats.CategoryStats = []model.CategoryCount{}
	}
	return c.JSON(stats)
}

// recordScan appends scan history for products carrying a barcode. History is
// best effort and never fails the request.
func (s *Server) recordScan(c *fiber.Ctx, p *model.Product, action model.ScanAction) {
	if p.Barcode == "" {
		return
	}
	scan := &model.ScanRecord{UserID: p.UserID, ProductID: p.ID, Barcode: p.Barcode, Action: action}
	if err := s.deps.Store.RecordScan(c.UserContext(), scan); err != nil {
		s.logger.Warn("record scan failed", "request_id", requestID(c), "product_id", p.ID, "error", err)
	}
}

func validationError(c *fiber.Ctx, field, msg string) error {
	v := validator{}
	v.check(false, field, msg)
	_, err := v.respond(c)
	return err
}
