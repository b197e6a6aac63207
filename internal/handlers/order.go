package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/mykafka"
	"github.com/skorokhod/furniture_shop/internal/service/orders"
	"github.com/skorokhod/furniture_shop/internal/service/token"
)

type OrderHandler struct {
	Svc      *orders.Service
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", key, event); err != nil {
		c.Logger().Errorf("kafka publish error: %v", err)
	}
}

// Checkout always requires authentication; guest checkout attempts are
// rejected outright even though the schema could hold guest orders.
func (h *OrderHandler) Checkout(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		Items []orders.ItemInput `json:"items"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}

	order, err := h.Svc.Checkout(c.Request().Context(), userID, req.Items)
	if err != nil {
		return err
	}

	h.publish(c, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  userID,
		"total":   order.TotalCents,
		"status":  order.Status,
	})

	return httpx.Created(c, order)
}

// Create is the generic order path: PENDING status, guest orders accepted
// with a contact email.
func (h *OrderHandler) Create(c echo.Context) error {
	userID, _ := token.UserID(c)

	var req struct {
		Items     []orders.ItemInput `json:"items"`
		GuestInfo struct {
			Email string `json:"email"`
		} `json:"guestInfo"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}

	order, err := h.Svc.Create(c.Request().Context(), userID, req.GuestInfo.Email, req.Items)
	if err != nil {
		return err
	}

	h.publish(c, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"userID":  userID,
		"total":   order.TotalCents,
		"status":  order.Status,
	})

	return httpx.Created(c, order)
}

func (h *OrderHandler) List(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	out, err := h.Svc.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return httpx.OK(c, out)
}

func (h *OrderHandler) Get(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	order, err := h.Svc.GetForUser(c.Request().Context(), id, userID)
	if err != nil {
		return err
	}
	return httpx.OK(c, order)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "invalid body", err)
	}

	order, err := h.Svc.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}

	h.publish(c, fmt.Sprint(order.ID), map[string]any{
		"type":    "order_status_changed",
		"orderID": order.ID,
		"status":  order.Status,
	})

	return httpx.OK(c, order)
}
