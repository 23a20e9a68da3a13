package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

var (
	// ErrNotFound is returned when a record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a user with the same email already exists.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrCategoryInUse is returned when deleting a category that products still reference.
	ErrCategoryInUse = errors.New("category in use")
)

// Storage defines the persistence layer for users, categories, products and scans.
type Storage interface {
	// CreateUser inserts a new user. The email is stored lower-cased.
	CreateUser(ctx context.Context, user *model.User) error

	// GetUser retrieves a user by id.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail retrieves a user by email, case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// MarkEmailVerified flags the user's email as verified.
	MarkEmailVerified(ctx context.Context, id string) error

	// UpdatePreferences replaces the user's alert preferences and phone number.
	UpdatePreferences(ctx context.Context, id string, prefs model.Preferences, phone string) error

	// ListEligibleUsers returns every user with a verified email.
	ListEligibleUsers(ctx context.Context) ([]model.User, error)

	// ListCategories returns the default categories plus the user's own.
	ListCategories(ctx context.Context, userID string) ([]model.Category, error)

	// GetCategory retrieves a category by id.
	GetCategory(ctx context.Context, id string) (*model.Category, error)

	// CreateCategory inserts a user category.
	CreateCategory(ctx context.Context, category *model.Category) error

	// UpdateCategory renames or re-icons a user-owned, non-default category.
	UpdateCategory(ctx context.Context, category *model.Category) error

	// DeleteCategory removes a user-owned category that no product references.
	DeleteCategory(ctx context.Context, userID, id string) error

	// SeedDefaultCategories inserts the missing default categories and returns how many were added.
	SeedDefaultCategories(ctx context.Context, defaults []model.Category) (int, error)

	// CreateProduct inserts a product.
	CreateProduct(ctx context.Context, product *model.Product) error

	// GetProduct retrieves a product owned by userID.
	GetProduct(ctx context.Context, userID, id string) (*model.Product, error)

	// UpdateProduct writes every mutable field of a product owned by product.UserID.
	// Alert flags are left alone; they change only through SetAlertFlags.
	UpdateProduct(ctx context.Context, product *model.Product) error

	// DeleteProduct removes a product owned by userID.
	DeleteProduct(ctx context.Context, userID, id string) error

	// ListProducts returns one page of products matching the filter and the total match count.
	ListProducts(ctx context.Context, filter model.ProductFilter) ([]model.Product, int, error)

	// ProductStats summarizes a user's inventory.
	ProductStats(ctx context.Context, userID string, threshold int, now time.Time) (*model.Stats, error)

	// FindProductByBarcode returns the user's product carrying barcode.
	FindProductByBarcode(ctx context.Context, userID, barcode string) (*model.Product, error)

	// FindLowStock returns the user's products with quantity at or below threshold, newest update first.
	FindLowStock(ctx context.Context, userID string, threshold int) ([]model.Product, error)

	// FindExpiringWithin returns the user's products expiring in [now, now+days], newest update first.
	FindExpiringWithin(ctx context.Context, userID string, now time.Time, days int) ([]model.Product, error)

	// SetAlertFlags sets one alert flag on every listed product. Missing ids are ignored.
	SetAlertFlags(ctx context.Context, productIDs []string, flag model.FlagName, value bool) (int64, error)

	// RecordScan appends a scan history entry.
	RecordScan(ctx context.Context, scan *model.ScanRecord) error

	// ListScans returns the user's most recent scans.
	ListScans(ctx context.Context, userID string, limit int) ([]model.ScanRecord, error)

	// Close releases resources.
	Close() error
}
