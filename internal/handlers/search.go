package handlers

import (
	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/service/search"
	"github.com/skorokhod/furniture_shop/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

func (h *SearchHandler) Search(c echo.Context) error {
	// The server may run without Elasticsearch (ES_URL unset).
	if h.ES == nil {
		return apperr.New(apperr.KindUnavailable, "search is not configured")
	}

	q := c.QueryParam("q")
	if q == "" {
		return apperr.New(apperr.KindBadRequest, "query parameter q is required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	from, size := util.Calculate(page, size)

	total, items, err := search.Search(c.Request().Context(), h.ES, h.Index, q, from, size)
	if err != nil {
		return err
	}
	return httpx.OK(c, map[string]any{"total": total, "items": items})
}
