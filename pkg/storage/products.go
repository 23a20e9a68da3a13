package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/policy"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type productRow struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	CategoryID        string         `db:"category_id"`
	Barcode           string         `db:"barcode"`
	ProductName       string         `db:"product_name"`
	Brand             string         `db:"brand"`
	BatchNumber       string         `db:"batch_number"`
	ExpiryDate        sql.NullTime   `db:"expiry_date"`
	ManufactureDate   sql.NullTime   `db:"manufacture_date"`
	Quantity          int            `db:"quantity"`
	Unit              string         `db:"unit"`
	CostPrice         float64        `db:"cost_price"`
	SellingPrice      float64        `db:"selling_price"`
	Supplier          string         `db:"supplier"`
	LastRestockDate   sql.NullTime   `db:"last_restock_date"`
	ImageURL          string         `db:"image_url"`
	AlertLowStock     bool           `db:"alert_low_stock"`
	AlertExpiringSoon bool           `db:"alert_expiring_soon"`
	CategoryName      sql.NullString `db:"category_name"`
	CategoryIcon      sql.NullString `db:"category_icon"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r productRow) toModel() model.Product {
	p := model.Product{
		ID:              r.ID,
		UserID:          r.UserID,
		CategoryID:      r.CategoryID,
		Barcode:         r.Barcode,
		ProductName:     r.ProductName,
		Brand:           r.Brand,
		BatchNumber:     r.BatchNumber,
		ExpiryDate:      nullTimePtr(r.ExpiryDate),
		ManufactureDate: nullTimePtr(r.ManufactureDate),
		Quantity:        r.Quantity,
		Unit:            r.Unit,
		CostPrice:       r.CostPrice,
		SellingPrice:    r.SellingPrice,
		Supplier:        r.Supplier,
		LastRestockDate: nullTimePtr(r.LastRestockDate),
		ImageURL:        r.ImageURL,
		Alerts: model.AlertFlags{
			LowStock:     r.AlertLowStock,
			ExpiringSoon: r.AlertExpiringSoon,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.CategoryName.Valid {
		p.Category = &model.CategoryRef{ID: r.CategoryID, Name: r.CategoryName.String, Icon: r.CategoryIcon.String}
	}
	return p
}

const productSelect = `SELECT p.id, p.user_id, p.category_id, p.barcode, p.product_name, p.brand, p.batch_number,
	p.expiry_date, p.manufacture_date, p.quantity, p.unit, p.cost_price, p.selling_price, p.supplier,
	p.last_restock_date, p.image_url, p.alert_low_stock, p.alert_expiring_soon,
	c.name AS category_name, c.icon AS category_icon, p.created_at, p.updated_at
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

// sortColumns whitelists the columns a product listing may be ordered by.
var sortColumns = map[string]string{
	"created_at":   "p.created_at",
	"updated_at":   "p.updated_at",
	"product_name": "p.product_name",
	"quantity":     "p.quantity",
	"expiry_date":  "p.expiry_date",
}

func (s *SQLite) selectProducts(ctx context.Context, query string, args ...any) ([]model.Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toModel())
	}
	return products, nil
}

func (s *SQLite) CreateProduct(ctx context.Context, product *model.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.Unit == "" {
		product.Unit = model.DefaultUnit
	}
	now := time.Now().UTC().Truncate(time.Second)
	product.CreatedAt, product.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, user_id, category_id, barcode, product_name, brand, batch_number,
			expiry_date, manufacture_date, quantity, unit, cost_price, selling_price, supplier,
			last_restock_date, image_url, alert_low_stock, alert_expiring_soon, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID, product.UserID, product.CategoryID, product.Barcode, product.ProductName,
		product.Brand, product.BatchNumber,
		formatNullTime(product.ExpiryDate), formatNullTime(product.ManufactureDate),
		product.Quantity, product.Unit, product.CostPrice, product.SellingPrice, product.Supplier,
		formatNullTime(product.LastRestockDate), product.ImageURL,
		product.Alerts.LowStock, product.Alerts.ExpiringSoon,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *SQLite) GetProduct(ctx context.Context, userID, id string) (*model.Product, error) {
	products, err := s.selectProducts(ctx, productSelect+" WHERE p.id = ? AND p.user_id = ?", id, userID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}

func (s *SQLite) UpdateProduct(ctx context.Context, product *model.Product) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET category_id = ?, barcode = ?, product_name = ?, brand = ?, batch_number = ?,
			expiry_date = ?, manufacture_date = ?, quantity = ?, unit = ?, cost_price = ?, selling_price = ?,
			supplier = ?, last_restock_date = ?, image_url = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		product.CategoryID, product.Barcode, product.ProductName, product.Brand, product.BatchNumber,
		formatNullTime(product.ExpiryDate), formatNullTime(product.ManufactureDate),
		product.Quantity, product.Unit, product.CostPrice, product.SellingPrice,
		product.Supplier, formatNullTime(product.LastRestockDate), product.ImageURL,
		formatTime(now), product.ID, product.UserID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	product.UpdatedAt = now
	return nil
}

func (s *SQLite) DeleteProduct(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error) {
	where, args := buildProductWhere(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products p WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	order, ok := sortColumns[filter.SortBy]
	if !ok {
		order = sortColumns["created_at"]
	}
	dir := "ASC"
	if filter.Desc {
		dir = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY %s %s, p.id LIMIT ? OFFSET ?", productSelect, where, order, dir)
	products, err := s.selectProducts(ctx, query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// buildProductWhere constructs the WHERE clause of a product listing.
func buildProductWhere(f model.ProductFilter) (string, []any) {
	conditions := []string{"p.user_id = ?"}
	args := []any{f.UserID}

	if f.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(f.Search)) + "%"
		conditions = append(conditions,
			`(LOWER(p.product_name) LIKE ? ESCAPE '\' OR LOWER(p.brand) LIKE ? ESCAPE '\' OR LOWER(p.barcode) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}
	if f.CategoryID != "" {
		conditions = append(conditions, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}

	switch f.StockLevel {
	case model.StockLow:
		conditions = append(conditions, "p.quantity <= ?")
		args = append(args, f.Threshold)
	case model.StockOut:
		conditions = append(conditions, "p.quantity = 0")
	}

	if days := f.ExpiryRange.Days(); days > 0 {
		now := f.Now
		if now.IsZero() {
			now = time.Now()
		}
		conditions = append(conditions, "p.expiry_date IS NOT NULL AND p.expiry_date >= ? AND p.expiry_date <= ?")
		args = append(args, formatTime(now), formatTime(policy.Horizon(now, days)))
	}

	return strings.Join(conditions, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (s *SQLite) ProductStats(ctx context.Context, userID string, threshold int, now time.Time) (*model.Stats, error) {
	stats := &model.Stats{}
	err := s.db.QueryRowxContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN quantity <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN expiry_date IS NOT NULL AND expiry_date >= ? AND expiry_date <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(selling_price * quantity), 0)
		FROM products WHERE user_id = ?`,
		threshold, formatTime(now), formatTime(policy.Horizon(now, policy.ExpiryHorizonDays)), userID,
	).Scan(&stats.TotalItems, &stats.LowStockCount, &stats.ExpiringSoonCount, &stats.TotalValue)
	if err != nil {
		return nil, fmt.Errorf("aggregate product stats: %w", err)
	}

	stats.CategoryStats = []model.CategoryCount{}
	if err := s.db.SelectContext(ctx, &stats.CategoryStats,
		`SELECT p.category_id AS category_id, c.name AS name, c.icon AS icon, COUNT(*) AS count
		 FROM products p JOIN categories c ON c.id = p.category_id
		 WHERE p.user_id = ?
		 GROUP BY p.category_id, c.name, c.icon
		 ORDER BY count DESC, c.name`,
		userID,
	); err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}
	return stats, nil
}

func (s *SQLite) FindProductByBarcode(ctx context.Context, userID, barcode string) (*model.Product, error) {
	products, err := s.selectProducts(ctx,
		productSelect+" WHERE p.user_id = ? AND p.barcode = ? ORDER BY p.updated_at DESC LIMIT 1", userID, barcode)
	if err != nil {
		return nil, fmt.Errorf("find product by barcode: %w", err)
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}

func (s *SQLite) FindLowStock(ctx context.Context, userID string, threshold int) ([]model.Product, error) {
	products, err := s.selectProducts(ctx,
		productSelect+" WHERE p.user_id = ? AND p.quantity <= ? ORDER BY p.updated_at DESC, p.id",
		userID, threshold)
	if err != nil {
		return nil, fmt.Errorf("find low stock: %w", err)
	}
	return products, nil
}

func (s *SQLite) FindExpiringWithin(ctx context.Context, userID string, now time.Time, days int) ([]model.Product, error) {
	products, err := s.selectProducts(ctx,
		productSelect+` WHERE p.user_id = ? AND p.expiry_date IS NOT NULL
			AND p.expiry_date >= ? AND p.expiry_date <= ?
			ORDER BY p.updated_at DESC, p.id`,
		userID, formatTime(now), formatTime(policy.Horizon(now, days)))
	if err != nil {
		return nil, fmt.Errorf("find expiring products: %w", err)
	}
	return products, nil
}

func (s *SQLite) SetAlertFlags(ctx context.Context, productIDs []string, flag model.FlagName, value bool) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}

	var column string
	switch flag {
	case model.FlagLowStock:
		column = "alert_low_stock"
	case model.FlagExpiringSoon:
		column = "alert_expiring_soon"
	default:
		return 0, fmt.Errorf("unknown alert flag %q", flag)
	}

	query, args, err := sqlx.In("UPDATE products SET "+column+" = ? WHERE id IN (?)", value, productIDs)
	if err != nil {
		return 0, fmt.Errorf("build flag update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("set alert flags: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) RecordScan(ctx context.Context, scan *model.ScanRecord) error {
	if scan.ID == "" {
		scan.ID = uuid.New().String()
	}
	if scan.Action == "" {
		scan.Action = model.ScanView
	}
	if scan.ScannedAt.IsZero() {
		scan.ScannedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_history (id, user_id, product_id, barcode, action, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		scan.ID, scan.UserID, scan.ProductID, scan.Barcode, string(scan.Action), formatTime(scan.ScannedAt),
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (s *SQLite) ListScans(ctx context.Context, userID string, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	var rows []struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		ProductID string    `db:"product_id"`
		Barcode   string    `db:"barcode"`
		Action    string    `db:"action"`
		ScannedAt time.Time `db:"scanned_at"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, product_id, barcode, action, scanned_at FROM scan_history
		 WHERE user_id = ? ORDER BY scanned_at DESC, id LIMIT ?`, userID, limit,
	); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	scans := make([]model.ScanRecord, 0, len(rows))
	for _, r := range rows {
		scans = append(scans, model.ScanRecord{
			ID:        r.ID,
			UserID:    r.UserID,
			ProductID: r.ProductID,
			Barcode:   r.Barcode,
			Action:    model.ScanAction(r.Action),
			ScannedAt: r.ScannedAt,
		})
	}
	return scans, nil
}
