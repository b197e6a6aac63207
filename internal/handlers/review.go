package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/models"
	"github.com/skorokhod/furniture_shop/internal/mykafka"
	"github.com/skorokhod/furniture_shop/internal/service/token"
)

type ReviewHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *ReviewHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "furniture_events", key, event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// Create is purchase-gated: only users with a completed order containing
// the furniture may review it, once.
func (h *ReviewHandler) Create(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	furnitureID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	if req.Rating < 1 || req.Rating > 5 {
		return apperr.New(apperr.KindBadRequest, "rating must be between 1 and 5")
	}

	var furniture models.Furniture
	if err := h.DB.First(&furniture, furnitureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "furniture %d not found", furnitureID)
		}
		return err
	}

	var purchases int64
	err = h.DB.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND orders.status = ? AND order_items.furniture_id = ?",
			userID, models.OrderStatusCompleted, furnitureID).
		Count(&purchases).Error
	if err != nil {
		return err
	}
	if purchases == 0 {
		return apperr.New(apperr.KindForbidden, "only purchasers can review this furniture")
	}

	var existing models.Review
	err = h.DB.Where("user_id = ? AND furniture_id = ?", userID, furnitureID).First(&existing).Error
	if err == nil {
		return apperr.New(apperr.KindConflict, "you already reviewed this furniture")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	review := models.Review{
		Rating:      req.Rating,
		Comment:     req.Comment,
		UserID:      userID,
		FurnitureID: furnitureID,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.New(apperr.KindConflict, "you already reviewed this furniture")
		}
		return err
	}

	h.publish(c, fmt.Sprint(furnitureID), map[string]any{
		"type":        "review_created",
		"furnitureID": furnitureID,
		"userID":      userID,
		"rating":      req.Rating,
	})

	return httpx.Created(c, review)
}

func (h *ReviewHandler) ListForFurniture(c echo.Context) error {
	furnitureID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var furniture models.Furniture
	if err := h.DB.First(&furniture, furnitureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "furniture %d not found", furnitureID)
		}
		return err
	}

	var reviews []models.Review
	if err := h.DB.Where("furniture_id = ?", furnitureID).
		Order("created_at DESC").Find(&reviews).Error; err != nil {
		return err
	}
	return httpx.OK(c, reviews)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var review models.Review
	if err := h.DB.First(&review, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "review %d not found", id)
		}
		return err
	}
	if review.UserID != userID {
		return apperr.New(apperr.KindForbidden, "review belongs to another user")
	}

	if err := h.DB.Delete(&review).Error; err != nil {
		return err
	}
	return c.NoContent(204)
}
