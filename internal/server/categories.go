package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
)

type categoryRequest struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func (s *Server) handleListCategories(c *fiber.Ctx) error {
	categories, err := s.deps.Store.ListCategories(c.UserContext(), currentUser(c).ID)
	if err != nil {
		return err
	}
	if categories == nil {
		categories = []model.Category{}
	}
	return c.JSON(fiber.Map{"categories": categories})
}

func (s *Server) handleCreateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	var v validator
	v.required(req.Name, "name", "Category name is required")
	if done, err := v.respond(c); done {
		return err
	}

	category := &model.Category{
		UserID: currentUser(c).ID,
		Name:   strings.TrimSpace(req.Name),
		Icon:   strings.TrimSpace(req.Icon),
	}
	if err := s.deps.Store.CreateCategory(c.UserContext(), category); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Category created successfully",
		"category": category,
	})
}

// ownedCategory loads a category for modification, writing the 404 or 403
// response itself when the caller may not touch it.
func (s *Server) ownedCategory(c *fiber.Ctx, verb string) (*model.Category, error) {
	category, err := s.deps.Store.GetCategory(c.UserContext(), c.Params("id"))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, message(c, fiber.StatusNotFound, "Category not found or not authorized")
	}
	if err != nil {
		return nil, err
	}
	if category.IsDefault {
		return nil, message(c, fiber.StatusForbidden, "Cannot "+verb+" default categories")
	}
	if category.UserID != currentUser(c).ID {
		return nil, message(c, fiber.StatusNotFound, "Category not found or not authorized")
	}
	return category, nil
}

func (s *Server) handleUpdateCategory(c *fiber.Ctx) error {
	var req categoryRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}
	category, err := s.ownedCategory(c, "update")
	if category == nil {
		return err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		category.Name = name
	}
	if icon := strings.TrimSpace(req.Icon); icon != "" {
		category.Icon = icon
	}
	if err := s.deps.Store.UpdateCategory(c.UserContext(), category); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":  "Category updated successfully",
		"category": category,
	})
}

func (s *Server) handleDeleteCategory(c *fiber.Ctx) error {
	category, err := s.ownedCategory(c, "delete")
	if category == nil {
		return err
	}

	err = s.deps.Store.DeleteCategory(c.UserContext(), category.UserID, category.ID)
	if errors.Is(err, storage.ErrCategoryInUse) {
		return message(c, fiber.StatusBadRequest, "Cannot delete category while products are using it")
	}
	if err != nil {
		return err
	}
	return message(c, fiber.StatusOK, "Category deleted successfully")
}
