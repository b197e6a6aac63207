package cart

import (
	"errors"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/models"
	"github.com/skorokhod/furniture_shop/internal/mykafka"
	"github.com/skorokhod/furniture_shop/internal/ratings"
	"github.com/skorokhod/furniture_shop/internal/service/token"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// ItemView pairs a cart line with the enriched furniture payload.
type ItemView struct {
	ID        uint                  `json:"id"`
	Quantity  uint                  `json:"quantity"`
	Furniture ratings.FurnitureView `json:"furniture"`
}

type CartView struct {
	ID         uint       `json:"id"`
	Items      []ItemView `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	cart, err := h.ensureCart(userID)
	if err != nil {
		return err
	}
	view, err := h.cartView(cart)
	if err != nil {
		return err
	}
	return httpx.OK(c, view)
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		FurnitureID uint `json:"furniture_id"`
		Quantity    uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	if req.FurnitureID == 0 {
		return apperr.New(apperr.KindBadRequest, "furniture_id required")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var furniture models.Furniture
	if err := h.DB.First(&furniture, req.FurnitureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.Newf(apperr.KindNotFound, "furniture %d not found", req.FurnitureID)
		}
		return err
	}

	cart, err := h.ensureCart(userID)
	if err != nil {
		return err
	}

	// One line per (cart, furniture): adding again raises the quantity.
	var item models.CartItem
	tx := h.DB.Where("cart_id = ? AND furniture_id = ?", cart.ID, req.FurnitureID).First(&item)
	switch {
	case tx.Error == nil:
		item.Quantity += req.Quantity
		if err := h.DB.Save(&item).Error; err != nil {
			return err
		}
	case errors.Is(tx.Error, gorm.ErrRecordNotFound):
		item = models.CartItem{CartID: cart.ID, FurnitureID: req.FurnitureID, Quantity: req.Quantity}
		if err := h.DB.Create(&item).Error; err != nil {
			return err
		}
	default:
		return tx.Error
	}

	h.publish(c, userID, map[string]any{
		"type":        "cart_item_added",
		"userID":      userID,
		"furnitureID": req.FurnitureID,
		"quantity":    item.Quantity,
	})

	view, err := h.cartView(cart)
	if err != nil {
		return err
	}
	return httpx.OK(c, view)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	itemID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Quantity uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}
	if req.Quantity < 1 {
		return apperr.New(apperr.KindBadRequest, "quantity must be positive")
	}

	cart, item, err := h.ownedItem(userID, itemID)
	if err != nil {
		return err
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(item).Error; err != nil {
		return err
	}

	h.publish(c, userID, map[string]any{
		"type":     "cart_item_updated",
		"userID":   userID,
		"itemID":   item.ID,
		"quantity": item.Quantity,
	})

	view, err := h.cartView(cart)
	if err != nil {
		return err
	}
	return httpx.OK(c, view)
}

func (h *CartHandler) DeleteItem(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	itemID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	cart, item, err := h.ownedItem(userID, itemID)
	if err != nil {
		return err
	}
	if err := h.DB.Delete(item).Error; err != nil {
		return err
	}

	h.publish(c, userID, map[string]any{
		"type":   "cart_item_deleted",
		"userID": userID,
		"itemID": itemID,
	})

	view, err := h.cartView(cart)
	if err != nil {
		return err
	}
	return httpx.OK(c, view)
}

func (h *CartHandler) Clear(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	cart, err := h.ensureCart(userID)
	if err != nil {
		return err
	}

	if err := h.DB.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}

	h.publish(c, userID, map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})

	view, err := h.cartView(cart)
	if err != nil {
		return err
	}
	return httpx.OK(c, view)
}
