package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/models"
	"github.com/skorokhod/furniture_shop/internal/mykafka"
	"github.com/skorokhod/furniture_shop/internal/ratings"
	"github.com/skorokhod/furniture_shop/internal/service/search"
	"github.com/skorokhod/furniture_shop/internal/util"
)

type FurnitureHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	ESIndex  string
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.KindBadRequest, "invalid %s", name)
	}
	return uint(id), nil
}

func (h *FurnitureHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "furniture_events", key, event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

func (h *FurnitureHandler) index(c echo.Context, f models.Furniture) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexFurniture(ctx, h.ES, h.ESIndex, f); err != nil {
		c.Logger().Errorf("elasticsearch index error: %v", err)
	}
}

func (h *FurnitureHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var f models.Furniture
	if err := h.DB.Preload("Images").Preload("Reviews").First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "furniture %d not found", id)
		}
		return err
	}

	return httpx.OK(c, ratings.View(f))
}

func (h *FurnitureHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Furniture{})
	if cat := c.QueryParam("categoryId"); cat != "" {
		catID, err := strconv.Atoi(cat)
		if err != nil || catID <= 0 {
			return apperr.New(apperr.KindBadRequest, "invalid categoryId")
		}
		q = q.Where("category_id = ?", catID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return err
	}

	var items []models.Furniture
	if err := q.Preload("Images").Preload("Reviews").
		Order("id ASC").Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return err
	}

	return httpx.OK(c, map[string]any{
		"items": ratings.Views(items),
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

type furniturePayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int64    `json:"price_cents"`
	SKU         string   `json:"sku"`
	WidthCM     float64  `json:"width_cm"`
	HeightCM    float64  `json:"height_cm"`
	DepthCM     float64  `json:"depth_cm"`
	CategoryID  uint     `json:"category_id"`
	ImageURLs   []string `json:"image_urls"`
}

func (p *furniturePayload) validate() error {
	switch {
	case p.Name == "":
		return apperr.New(apperr.KindBadRequest, "name is required")
	case p.SKU == "":
		return apperr.New(apperr.KindBadRequest, "sku is required")
	case p.PriceCents <= 0:
		return apperr.New(apperr.KindBadRequest, "price must be positive")
	case p.WidthCM <= 0 || p.HeightCM <= 0 || p.DepthCM <= 0:
		return apperr.New(apperr.KindBadRequest, "dimensions must be positive")
	case p.CategoryID == 0:
		return apperr.New(apperr.KindBadRequest, "category_id is required")
	}
	return nil
}

func (h *FurnitureHandler) Create(c echo.Context) error {
	var req furniturePayload
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	var category models.Category
	if err := h.DB.First(&category, req.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "category %d not found", req.CategoryID)
		}
		return err
	}

	f := models.Furniture{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		SKU:         req.SKU,
		WidthCM:     req.WidthCM,
		HeightCM:    req.HeightCM,
		DepthCM:     req.DepthCM,
		CategoryID:  req.CategoryID,
	}
	for _, url := range req.ImageURLs {
		f.Images = append(f.Images, models.Image{URL: url})
	}

	if err := h.DB.Create(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Newf(apperr.KindConflict, "sku %q already exists", req.SKU)
		}
		return err
	}

	h.index(c, f)
	h.publish(c, fmt.Sprint(f.ID), map[string]any{
		"type":        "furniture_created",
		"furnitureID": f.ID,
		"name":        f.Name,
	})

	return httpx.Created(c, ratings.View(f))
}

func (h *FurnitureHandler) Patch(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req furniturePayload
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	var f models.Furniture
	if err := h.DB.Preload("Images").First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "furniture %d not found", id)
		}
		return err
	}

	f.Name = req.Name
	f.Description = req.Description
	f.PriceCents = req.PriceCents
	f.SKU = req.SKU
	f.WidthCM = req.WidthCM
	f.HeightCM = req.HeightCM
	f.DepthCM = req.DepthCM
	f.CategoryID = req.CategoryID

	if err := h.DB.Save(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Newf(apperr.KindConflict, "sku %q already exists", req.SKU)
		}
		return err
	}

	h.index(c, f)
	h.publish(c, fmt.Sprint(f.ID), map[string]any{
		"type":        "furniture_updated",
		"furnitureID": f.ID,
	})

	return httpx.OK(c, ratings.View(f))
}

// Delete refuses while order items still reference the furniture, so order
// history keeps resolving.
func (h *FurnitureHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var f models.Furniture
	if err := h.DB.First(&f, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "furniture %d not found", id)
		}
		return err
	}

	var refs int64
	if err := h.DB.Model(&models.OrderItem{}).Where("furniture_id = ?", id).Count(&refs).Error; err != nil {
		return err
	}
	if refs > 0 {
		return apperr.Newf(apperr.KindConflict, "furniture %d is referenced by existing orders", id)
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("furniture_id = ?", id).Delete(&models.Image{}).Error; err != nil {
			return err
		}
		if err := tx.Where("furniture_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Where("furniture_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Furniture{}, id).Error
	})
	if err != nil {
		return err
	}

	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeleteFurniture(ctx, h.ES, h.ESIndex, id); err != nil {
			c.Logger().Errorf("elasticsearch delete error: %v", err)
		}
	}
	h.publish(c, fmt.Sprint(id), map[string]any{
		"type":        "furniture_deleted",
		"furnitureID": id,
	})

	return c.NoContent(204)
}
