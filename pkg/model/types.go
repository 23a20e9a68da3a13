package model

import "time"

// DefaultLowStockThreshold applies to users that never changed their preferences.
const DefaultLowStockThreshold = 10

// NotificationPrefs selects which channels a user wants alerts on.
type NotificationPrefs struct {
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// Preferences holds the per-user alert settings.
type Preferences struct {
	LowStockThreshold int               `json:"low_stock_threshold"`
	Notifications     NotificationPrefs `json:"notifications"`
}

// DefaultPreferences returns the settings a freshly registered user starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		LowStockThreshold: DefaultLowStockThreshold,
		Notifications:     NotificationPrefs{Email: true, SMS: false},
	}
}

// User is a store owner.
type User struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	PasswordHash  string      `json:"-"`
	ShopName      string      `json:"shop_name"`
	PhoneNumber   string      `json:"phone_number,omitempty"`
	EmailVerified bool        `json:"email_verified"`
	Preferences   Preferences `json:"preferences"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// HasPhone reports whether SMS alerts can be addressed to the user.
func (u User) HasPhone() bool { return u.PhoneNumber != "" }

// AlertFlags are "already notified" markers written by the alert sweep.
type AlertFlags struct {
	LowStock     bool `json:"low_stock"`
	ExpiringSoon bool `json:"expiring_soon"`
}

// Product is a stock item owned by exactly one user.
type Product struct {
	ID              string       `json:"id"`
	UserID          string       `json:"user_id"`
	CategoryID      string       `json:"category_id"`
	Barcode         string       `json:"barcode,omitempty"`
	ProductName     string       `json:"product_name"`
	Brand           string       `json:"brand,omitempty"`
	BatchNumber     string       `json:"batch_number,omitempty"`
	ExpiryDate      *time.Time   `json:"expiry_date,omitempty"`
	ManufactureDate *time.Time   `json:"manufacture_date,omitempty"`
	Quantity        int          `json:"quantity"`
	Unit            string       `json:"unit"`
	CostPrice       float64      `json:"cost_price"`
	SellingPrice    float64      `json:"selling_price"`
	Supplier        string       `json:"supplier,omitempty"`
	LastRestockDate *time.Time   `json:"last_restock_date,omitempty"`
	ImageURL        string       `json:"image_url,omitempty"`
	Alerts          AlertFlags   `json:"alerts"`
	Category        *CategoryRef `json:"category,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// CategoryRef is the category summary embedded in product responses.
type CategoryRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// DefaultUnit is used when a product is created without a unit.
const DefaultUnit = "pieces"

// Category groups products. Default categories are shared by every user.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultIcon is used when a category is created without an icon.
const DefaultIcon = "📦"

// ScanAction is what a barcode scan was used for.
type ScanAction string

const (
	ScanView   ScanAction = "view"
	ScanUpdate ScanAction = "update"
	ScanAdd    ScanAction = "add"
)

// Valid reports whether a is one of the known scan actions.
func (a ScanAction) Valid() bool {
	switch a {
	case ScanView, ScanUpdate, ScanAdd:
		return true
	}
	return false
}

// ScanRecord is one entry of a user's barcode scan history.
type ScanRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ProductID string     `json:"product_id,omitempty"`
	Barcode   string     `json:"barcode"`
	Action    ScanAction `json:"action"`
	ScannedAt time.Time  `json:"scanned_at"`
}

// StockLevel filters the product list by quantity.
type StockLevel string

const (
	StockLow StockLevel = "low"
	StockOut StockLevel = "out"
)

// ExpiryRange filters the product list by expiry window.
type ExpiryRange string

const (
	ExpiryWeek  ExpiryRange = "week"
	ExpiryMonth ExpiryRange = "month"
)

// Days returns the window length of r, or 0 when r does not filter.
func (r ExpiryRange) Days() int {
	switch r {
	case ExpiryWeek:
		return 7
	case ExpiryMonth:
		return 30
	default:
		return 0
	}
}

// ProductFilter controls the product listing.
type ProductFilter struct {
	UserID      string
	Search      string
	CategoryID  string
	StockLevel  StockLevel
	Threshold   int
	ExpiryRange ExpiryRange
	Now         time.Time
	SortBy      string
	Desc        bool
	Page        int
	Limit       int
}

// CategoryCount is one bucket of the dashboard category distribution.
type CategoryCount struct {
	CategoryID string `json:"category_id" db:"category_id"`
	Name       string `json:"name" db:"name"`
	Icon       string `json:"icon" db:"icon"`
	Count      int    `json:"count" db:"count"`
}

// Stats is the dashboard summary of a user's inventory.
type Stats struct {
	TotalItems        int             `json:"total_items"`
	LowStockCount     int             `json:"low_stock_count"`
	ExpiringSoonCount int             `json:"expiring_soon_count"`
	TotalValue        float64         `json:"total_value"`
	CategoryStats     []CategoryCount `json:"category_stats"`
}
