package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/ogulcanaydogan/stocksync/pkg/model"

	_ "modernc.org/sqlite"
)

// timeLayout matches SQLite's CURRENT_TIMESTAMP so stored times compare lexically.
const timeLayout = "2006-01-02 15:04:05"

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sqlx.DB
}

var _ Storage = (*SQLite)(nil)

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type userRow struct {
	ID                string    `db:"id"`
	Email             string    `db:"email"`
	PasswordHash      string    `db:"password_hash"`
	ShopName          string    `db:"shop_name"`
	PhoneNumber       string    `db:"phone_number"`
	EmailVerified     bool      `db:"email_verified"`
	LowStockThreshold int       `db:"low_stock_threshold"`
	NotifyEmail       bool      `db:"notify_email"`
	NotifySMS         bool      `db:"notify_sms"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

func (r userRow) toModel() model.User {
	return model.User{
		ID:            r.ID,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		ShopName:      r.ShopName,
		PhoneNumber:   r.PhoneNumber,
		EmailVerified: r.EmailVerified,
		Preferences: model.Preferences{
			LowStockThreshold: r.LowStockThreshold,
			Notifications: model.NotificationPrefs{
				Email: r.NotifyEmail,
				SMS:   r.NotifySMS,
			},
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const userColumns = `id, email, password_hash, shop_name, phone_number, email_verified,
	low_stock_threshold, notify_email, notify_sms, created_at, updated_at`

func (s *SQLite) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC().Truncate(time.Second)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt, user.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, shop_name, phone_number, email_verified,
			low_stock_threshold, notify_email, notify_sms, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.PasswordHash, user.ShopName, user.PhoneNumber, user.EmailVerified,
		user.Preferences.LowStockThreshold, user.Preferences.Notifications.Email, user.Preferences.Notifications.SMS,
		formatTime(now), formatTime(now),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUser(ctx, "id = ?", id)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUser(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLite) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u := row.toModel()
	return &u, nil
}

func (s *SQLite) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET email_verified = 1, updated_at = ? WHERE id = ?",
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("verify user email: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) UpdatePreferences(ctx context.Context, id string, prefs model.Preferences, phone string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET low_stock_threshold = ?, notify_email = ?, notify_sms = ?, phone_number = ?, updated_at = ?
		 WHERE id = ?`,
		prefs.LowStockThreshold, prefs.Notifications.Email, prefs.Notifications.SMS, phone,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update preferences: %w", err)
	}
	return requireAffected(res)
}

func (s *SQLite) ListEligibleUsers(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT "+userColumns+" FROM users WHERE email_verified = 1 ORDER BY created_at, id",
	); err != nil {
		return nil, fmt.Errorf("list eligible users: %w", err)
	}

	users := make([]model.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toModel())
	}
	return users, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
