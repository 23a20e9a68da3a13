package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *storage.SQLite, email string, verified bool) *model.User {
	t.Helper()
	u := &model.User{
		Email:         email,
		PasswordHash:  "hash",
		ShopName:      "Corner Shop",
		EmailVerified: verified,
		Preferences:   model.DefaultPreferences(),
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createCategory(t *testing.T, db *storage.SQLite, userID, name string) *model.Category {
	t.Helper()
	c := &model.Category{UserID: userID, Name: name}
	require.NoError(t, db.CreateCategory(context.Background(), c))
	return c
}

func ptr(t time.Time) *time.Time { return &t }

func TestSQLite_Users(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := createUser(t, db, "Owner@Example.com", false)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "owner@example.com", u.Email)

	err := db.CreateUser(ctx, &model.User{Email: "owner@example.com", PasswordHash: "x", ShopName: "dup"})
	assert.ErrorIs(t, err, storage.ErrDuplicateEmail)

	got, err := db.GetUserByEmail(ctx, "OWNER@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.EmailVerified)
	assert.Equal(t, 10, got.Preferences.LowStockThreshold)
	assert.True(t, got.Preferences.Notifications.Email)

	_, err = db.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_ListEligibleUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	verified := createUser(t, db, "a@example.com", true)
	pending := createUser(t, db, "b@example.com", false)

	users, err := db.ListEligibleUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, verified.ID, users[0].ID)

	require.NoError(t, db.MarkEmailVerified(ctx, pending.ID))
	users, err = db.ListEligibleUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	assert.ErrorIs(t, db.MarkEmailVerified(ctx, "missing"), storage.ErrNotFound)
}

func TestSQLite_UpdatePreferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)

	prefs := model.Preferences{LowStockThreshold: 3, Notifications: model.NotificationPrefs{Email: false, SMS: true}}
	require.NoError(t, db.UpdatePreferences(ctx, u.ID, prefs, "+15550100"))

	got, err := db.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, prefs, got.Preferences)
	assert.Equal(t, "+15550100", got.PhoneNumber)
}

func TestSQLite_ProductCRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)
	other := createUser(t, db, "b@example.com", true)
	cat := createCategory(t, db, u.ID, "Snacks")

	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &model.Product{
		UserID:      u.ID,
		CategoryID:  cat.ID,
		ProductName: "Biscuits",
		Barcode:     "8901234",
		Quantity:    12,
		ExpiryDate:  &expiry,
	}
	require.NoError(t, db.CreateProduct(ctx, p))
	assert.Equal(t, model.DefaultUnit, p.Unit)

	got, err := db.GetProduct(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Biscuits", got.ProductName)
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, expiry.Equal(*got.ExpiryDate))
	assert.Nil(t, got.ManufactureDate)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Snacks", got.Category.Name)

	_, err = db.GetProduct(ctx, other.ID, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// A sweep flags the product between the read and the write of an edit.
	_, err = db.SetAlertFlags(ctx, []string{p.ID}, model.FlagLowStock, true)
	require.NoError(t, err)

	got.Quantity = 4
	got.ExpiryDate = nil
	require.NoError(t, db.UpdateProduct(ctx, got))
	got, err = db.GetProduct(ctx, u.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Quantity)
	assert.Nil(t, got.ExpiryDate)
	assert.True(t, got.Alerts.LowStock, "edit keeps the flag the sweep wrote")

	foreign := *got
	foreign.UserID = other.ID
	assert.ErrorIs(t, db.UpdateProduct(ctx, &foreign), storage.ErrNotFound)

	byCode, err := db.FindProductByBarcode(ctx, u.ID, "8901234")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byCode.ID)
	_, err = db.FindProductByBarcode(ctx, other.ID, "8901234")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, db.DeleteProduct(ctx, other.ID, p.ID), storage.ErrNotFound)
	require.NoError(t, db.DeleteProduct(ctx, u.ID, p.ID))
	_, err = db.GetProduct(ctx, u.ID, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_FindLowStockAndExpiring(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)
	cat := createCategory(t, db, u.ID, "Dairy")
	now := time.Now().UTC().Truncate(time.Second)

	products := []*model.Product{
		{ProductName: "low", Quantity: 3},
		{ProductName: "edge", Quantity: 10},
		{ProductName: "plenty", Quantity: 50},
		{ProductName: "soon", Quantity: 50, ExpiryDate: ptr(now.Add(2 * 24 * time.Hour))},
		{ProductName: "later", Quantity: 50, ExpiryDate: ptr(now.Add(10 * 24 * time.Hour))},
		{ProductName: "expired", Quantity: 50, ExpiryDate: ptr(now.Add(-24 * time.Hour))},
	}
	for _, p := range products {
		p.UserID = u.ID
		p.CategoryID = cat.ID
		require.NoError(t, db.CreateProduct(ctx, p))
	}

	low, err := db.FindLowStock(ctx, u.ID, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"low", "edge"}, names(low))

	expiring, err := db.FindExpiringWithin(ctx, u.ID, now, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"soon"}, names(expiring))

	none, err := db.FindLowStock(ctx, "someone-else", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_SetAlertFlags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)
	cat := createCategory(t, db, u.ID, "Dairy")

	a := &model.Product{UserID: u.ID, CategoryID: cat.ID, ProductName: "a", Quantity: 1}
	b := &model.Product{UserID: u.ID, CategoryID: cat.ID, ProductName: "b", Quantity: 1}
	require.NoError(t, db.CreateProduct(ctx, a))
	require.NoError(t, db.CreateProduct(ctx, b))

	n, err := db.SetAlertFlags(ctx, []string{a.ID, b.ID, "vanished"}, model.FlagLowStock, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := db.GetProduct(ctx, u.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Alerts.LowStock)
	assert.False(t, got.Alerts.ExpiringSoon)

	n, err = db.SetAlertFlags(ctx, nil, model.FlagExpiringSoon, true)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = db.SetAlertFlags(ctx, []string{a.ID}, model.FlagName("bogus"), true)
	assert.Error(t, err)
}

func TestSQLite_ListProducts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)
	snacks := createCategory(t, db, u.ID, "Snacks")
	drinks := createCategory(t, db, u.ID, "Drinks")
	now := time.Now().UTC()

	for i, p := range []*model.Product{
		{ProductName: "Cola", Brand: "Fizz", CategoryID: drinks.ID, Quantity: 0},
		{ProductName: "Chips 100%", CategoryID: snacks.ID, Quantity: 5, ExpiryDate: ptr(now.Add(48 * time.Hour))},
		{ProductName: "Cookies", CategoryID: snacks.ID, Quantity: 40, ExpiryDate: ptr(now.Add(20 * 24 * time.Hour))},
	} {
		p.UserID = u.ID
		p.Barcode = string(rune('a' + i))
		require.NoError(t, db.CreateProduct(ctx, p))
	}

	tests := []struct {
		name   string
		filter model.ProductFilter
		want   []string
	}{
		{"all sorted by name", model.ProductFilter{SortBy: "product_name"}, []string{"Chips 100%", "Cola", "Cookies"}},
		{"search brand", model.ProductFilter{Search: "fizz"}, []string{"Cola"}},
		{"search escapes wildcard", model.ProductFilter{Search: "100%"}, []string{"Chips 100%"}},
		{"category", model.ProductFilter{CategoryID: snacks.ID, SortBy: "quantity"}, []string{"Chips 100%", "Cookies"}},
		{"low stock", model.ProductFilter{StockLevel: model.StockLow, Threshold: 10, SortBy: "quantity"}, []string{"Cola", "Chips 100%"}},
		{"out of stock", model.ProductFilter{StockLevel: model.StockOut}, []string{"Cola"}},
		{"expiring this week", model.ProductFilter{ExpiryRange: model.ExpiryWeek, Now: now}, []string{"Chips 100%"}},
		{"expiring this month", model.ProductFilter{ExpiryRange: model.ExpiryMonth, Now: now, SortBy: "expiry_date"}, []string{"Chips 100%", "Cookies"}},
		{"descending", model.ProductFilter{SortBy: "quantity", Desc: true}, []string{"Cookies", "Chips 100%", "Cola"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.UserID = u.ID
			got, total, err := db.ListProducts(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
			assert.Equal(t, len(tt.want), total)
		})
	}

	page, total, err := db.ListProducts(ctx, model.ProductFilter{UserID: u.ID, SortBy: "product_name", Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"Cookies"}, names(page))
}

func TestSQLite_ProductStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)
	snacks := createCategory(t, db, u.ID, "Snacks")
	now := time.Now().UTC()

	require.NoError(t, db.CreateProduct(ctx, &model.Product{UserID: u.ID, CategoryID: snacks.ID, ProductName: "a", Quantity: 2, SellingPrice: 1.5}))
	require.NoError(t, db.CreateProduct(ctx, &model.Product{UserID: u.ID, CategoryID: snacks.ID, ProductName: "b", Quantity: 20, SellingPrice: 2, ExpiryDate: ptr(now.Add(24 * time.Hour))}))

	stats, err := db.ProductStats(ctx, u.ID, 10, now)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.LowStockCount)
	assert.Equal(t, 1, stats.ExpiringSoonCount)
	assert.InDelta(t, 43.0, stats.TotalValue, 0.001)
	require.Len(t, stats.CategoryStats, 1)
	assert.Equal(t, "Snacks", stats.CategoryStats[0].Name)
	assert.Equal(t, 2, stats.CategoryStats[0].Count)

	empty, err := db.ProductStats(ctx, "nobody", 10, now)
	require.NoError(t, err)
	assert.Zero(t, empty.TotalItems)
	assert.Empty(t, empty.CategoryStats)
}

func TestSQLite_Categories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)

	added, err := db.SeedDefaultCategories(ctx, []model.Category{{Name: "Beverages", Icon: "🥤"}, {Name: "Spices", Icon: "🌶️"}})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = db.SeedDefaultCategories(ctx, []model.Category{{Name: "Beverages", Icon: "🥤"}})
	require.NoError(t, err)
	assert.Zero(t, added)

	own := createCategory(t, db, u.ID, "Frozen")
	assert.Equal(t, model.DefaultIcon, own.Icon)

	cats, err := db.ListCategories(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.True(t, cats[0].IsDefault)
	assert.False(t, cats[2].IsDefault)

	others, err := db.ListCategories(ctx, "someone-else")
	require.NoError(t, err)
	assert.Len(t, others, 2)

	own.Name = "Frozen Foods"
	require.NoError(t, db.UpdateCategory(ctx, own))
	got, err := db.GetCategory(ctx, own.ID)
	require.NoError(t, err)
	assert.Equal(t, "Frozen Foods", got.Name)

	def := cats[0]
	def.UserID = u.ID
	assert.ErrorIs(t, db.UpdateCategory(ctx, &def), storage.ErrNotFound)

	require.NoError(t, db.CreateProduct(ctx, &model.Product{UserID: u.ID, CategoryID: own.ID, ProductName: "Peas", Quantity: 1}))
	assert.ErrorIs(t, db.DeleteCategory(ctx, u.ID, own.ID), storage.ErrCategoryInUse)

	empty := createCategory(t, db, u.ID, "Empty")
	require.NoError(t, db.DeleteCategory(ctx, u.ID, empty.ID))
	_, err = db.GetCategory(ctx, empty.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLite_Scans(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createUser(t, db, "a@example.com", true)

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, db.RecordScan(ctx, &model.ScanRecord{UserID: u.ID, Barcode: "1", ScannedAt: base}))
	require.NoError(t, db.RecordScan(ctx, &model.ScanRecord{UserID: u.ID, Barcode: "2", Action: model.ScanAdd, ScannedAt: base.Add(time.Minute)}))

	scans, err := db.ListScans(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "2", scans[0].Barcode)
	assert.Equal(t, model.ScanAdd, scans[0].Action)
	assert.Equal(t, model.ScanView, scans[1].Action)
}

func names(products []model.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ProductName)
	}
	return out
}
