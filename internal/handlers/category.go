package handlers

import (
	"errors"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/models"
)

type CategoryHandler struct {
	DB *gorm.DB
}

func (h *CategoryHandler) List(c echo.Context) error {
	var categories []models.Category
	if err := h.DB.Order("name ASC").Find(&categories).Error; err != nil {
		return err
	}
	return httpx.OK(c, categories)
}

func (h *CategoryHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "category %d not found", id)
		}
		return err
	}
	return httpx.OK(c, category)
}

func (h *CategoryHandler) Create(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	if req.Name == "" {
		return apperr.New(apperr.KindBadRequest, "name is required")
	}

	category := models.Category{Name: req.Name, Description: req.Description}
	if err := h.DB.Create(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Newf(apperr.KindConflict, "category %q already exists", req.Name)
		}
		return err
	}
	return httpx.Created(c, category)
}

func (h *CategoryHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "category %d not found", id)
		}
		return err
	}

	if req.Name != "" {
		category.Name = req.Name
	}
	if req.Description != "" {
		category.Description = req.Description
	}

	if err := h.DB.Save(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Newf(apperr.KindConflict, "category %q already exists", req.Name)
		}
		return err
	}
	return httpx.OK(c, category)
}

// Delete refuses while furniture still belongs to the category.
func (h *CategoryHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "category %d not found", id)
		}
		return err
	}

	var refs int64
	if err := h.DB.Model(&models.Furniture{}).Where("category_id = ?", id).Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return apperr.Newf(apperr.KindConflict, "category %d still has furniture", id)
	}

	if err := h.DB.Delete(&models.Category{}, id).Error; err != nil {
		return err
	}
	return c.NoContent(204)
}
