package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
)

type categoryRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	Icon      string    `db:"icon"`
	IsDefault bool      `db:"is_default"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r categoryRow) toModel() model.Category {
	return model.Category(r)
}

const categoryColumns = "id, user_id, name, icon, is_default, created_at, updated_at"

func (s *SQLite) ListCategories(ctx context.Context, userID string) ([]model.Category, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT "+categoryColumns+" FROM categories WHERE is_default = 1 OR user_id = ? ORDER BY is_default DESC, name",
		userID,
	); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	categories := make([]model.Category, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, r.toModel())
	}
	return categories, nil
}

func (s *SQLite) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	var row categoryRow
	err := s.db.GetContext(ctx, &row, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c := row.toModel()
	return &c, nil
}

func (s *SQLite) CreateCategory(ctx context.Context, category *model.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.Icon == "" {
		category.Icon = model.DefaultIcon
	}
	now := time.Now().UTC().Truncate(time.Second)
	category.CreatedAt, category.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, icon, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		category.ID, category.UserID, category.Name, category.Icon, category.IsDefault,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *SQLite) UpdateCategory(ctx context.Context, category *model.Category) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, icon = ?, updated_at = ?
		 WHERE id = ? AND user_id = ? AND is_default = 0`,
		category.Name, category.Icon, formatTime(now), category.ID, category.UserID,
	)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	category.UpdatedAt = now
	return nil
}

func (s *SQLite) DeleteCategory(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete category: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var inUse int
	if err := tx.GetContext(ctx, &inUse, "SELECT COUNT(*) FROM products WHERE category_id = ?", id); err != nil {
		return fmt.Errorf("count category products: %w", err)
	}
	if inUse > 0 {
		return ErrCategoryInUse
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM categories WHERE id = ? AND user_id = ? AND is_default = 0", id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) SeedDefaultCategories(ctx context.Context, defaults []model.Category) (int, error) {
	added := 0
	for _, c := range defaults {
		var exists int
		if err := s.db.GetContext(ctx, &exists,
			"SELECT COUNT(*) FROM categories WHERE is_default = 1 AND name = ?", c.Name,
		); err != nil {
			return added, fmt.Errorf("check default category %q: %w", c.Name, err)
		}
		if exists > 0 {
			continue
		}

		c.UserID = ""
		c.IsDefault = true
		if err := s.CreateCategory(ctx, &c); err != nil {
			return added, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		added++
	}
	return added, nil
}
