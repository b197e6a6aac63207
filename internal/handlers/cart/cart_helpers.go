package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/models"
	"github.com/skorokhod/furniture_shop/internal/ratings"
)

func (h *CartHandler) publish(c echo.Context, userID uint, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(userID), event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.KindBadRequest, "invalid %s", name)
	}
	return uint(id), nil
}

// ensureCart creates the user's cart on first access; carts are never
// deleted afterwards.
func (h *CartHandler) ensureCart(userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := h.DB.Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cart = models.Cart{UserID: userID}
	if err := h.DB.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (h *CartHandler) ownedItem(userID, itemID uint) (*models.Cart, *models.CartItem, error) {
	cart, err := h.ensureCart(userID)
	if err != nil {
		return nil, nil, err
	}
	var item models.CartItem
	if err := h.DB.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.Newf(apperr.KindNotFound, "cart item %d not found", itemID)
		}
		return nil, nil, err
	}
	return cart, &item, nil
}

func (h *CartHandler) cartView(cart *models.Cart) (*CartView, error) {
	var items []models.CartItem
	if err := h.DB.Where("cart_id = ?", cart.ID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}

	view := &CartView{ID: cart.ID, Items: make([]ItemView, 0, len(items))}
	for _, it := range items {
		var f models.Furniture
		if err := h.DB.Preload("Images").Preload("Reviews").First(&f, it.FurnitureID).Error; err != nil {
			return nil, err
		}
		view.Items = append(view.Items, ItemView{ID: it.ID, Quantity: it.Quantity, Furniture: ratings.View(f)})
		view.TotalCents += f.PriceCents * int64(it.Quantity)
	}
	return view, nil
}
