package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/service/recommend"
)

type RecommendationHandler struct {
	Composer *recommend.Composer
}

// limit defaults to 10 and must stay in [1,50]; excludeId drops one item
// from whatever strategy runs.
func recommendParams(c echo.Context) (int, uint, error) {
	limit := recommend.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, apperr.New(apperr.KindBadRequest, "invalid limit")
		}
		limit = v
	}
	if err := recommend.CheckLimit(limit); err != nil {
		return 0, 0, err
	}

	var excludeID uint
	if raw := c.QueryParam("excludeId"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, apperr.New(apperr.KindBadRequest, "invalid excludeId")
		}
		excludeID = uint(v)
	}
	return limit, excludeID, nil
}

func (h *RecommendationHandler) ForUser(c echo.Context) error {
	userID, err := pathID(c, "userId")
	if err != nil {
		return err
	}
	limit, excludeID, err := recommendParams(c)
	if err != nil {
		return err
	}
	result, err := h.Composer.ForUser(c.Request().Context(), userID, limit, excludeID)
	if err != nil {
		return err
	}
	return httpx.OK(c, result)
}

func (h *RecommendationHandler) Popular(c echo.Context) error {
	limit, excludeID, err := recommendParams(c)
	if err != nil {
		return err
	}
	result, err := h.Composer.Popular(c.Request().Context(), limit, excludeID)
	if err != nil {
		return err
	}
	return httpx.OK(c, result)
}

func (h *RecommendationHandler) ByCategory(c echo.Context) error {
	categoryID, err := pathID(c, "categoryId")
	if err != nil {
		return err
	}
	limit, excludeID, err := recommendParams(c)
	if err != nil {
		return err
	}
	result, err := h.Composer.ByCategory(c.Request().Context(), categoryID, limit, excludeID)
	if err != nil {
		return err
	}
	return httpx.OK(c, result)
}

func (h *RecommendationHandler) Similar(c echo.Context) error {
	furnitureID, err := pathID(c, "furnitureId")
	if err != nil {
		return err
	}
	limit, _, err := recommendParams(c)
	if err != nil {
		return err
	}
	result, err := h.Composer.Similar(c.Request().Context(), furnitureID, limit)
	if err != nil {
		return err
	}
	return httpx.OK(c, result)
}
