package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skorokhod/furniture_shop/internal/models"
)

func TestReviewCreatePurchaseGated(t *testing.T) {
	env := newTestEnv(t)
	cat := env.seedCategory("chairs")
	f := env.seedFurniture("Chair", "CHAIR-001", 4990, cat.ID)
	buyer := env.seedUser("buyer@example.com")
	browser := env.seedUser("browser@example.com")

	env.seedCompletedOrder(buyer.ID, f.ID)

	body := map[string]any{"rating": 5, "comment": "solid"}
	params := []string{fmt.Sprint(f.ID)}

	// Non-purchaser is rejected.
	rec, envlp := env.request(env.Review.Create, http.MethodPost, "/api/v1/furniture/1/reviews", body,
		withParams(asUser(browser.ID), []string{"id"}, params))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", envlp.Error.Code)

	rec, envlp = env.request(env.Review.Create, http.MethodPost, "/api/v1/furniture/1/reviews", body,
		withParams(asUser(buyer.ID), []string{"id"}, params))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.EqualValues(t, 5, dataMap(t, envlp)["rating"])

	// One review per user and furniture.
	rec, envlp = env.request(env.Review.Create, http.MethodPost, "/api/v1/furniture/1/reviews", body,
		withParams(asUser(buyer.ID), []string{"id"}, params))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "CONFLICT", envlp.Error.Code)
}

func TestReviewCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	cat := env.seedCategory("chairs")
	f := env.seedFurniture("Chair", "CHAIR-001", 4990, cat.ID)
	buyer := env.seedUser("buyer@example.com")
	env.seedCompletedOrder(buyer.ID, f.ID)

	for _, rating := range []int{0, 6, -1} {
		rec, _ := env.request(env.Review.Create, http.MethodPost, "/api/v1/furniture/1/reviews",
			map[string]any{"rating": rating},
			withParams(asUser(buyer.ID), []string{"id"}, []string{fmt.Sprint(f.ID)}))
		require.Equal(t, http.StatusBadRequest, rec.Code, "rating %d", rating)
	}

	// Unknown furniture.
	rec, _ := env.request(env.Review.Create, http.MethodPost, "/api/v1/furniture/999/reviews",
		map[string]any{"rating": 4},
		withParams(asUser(buyer.ID), []string{"id"}, []string{"999"}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewListForFurniture(t *testing.T) {
	env := newTestEnv(t)
	cat := env.seedCategory("chairs")
	f := env.seedFurniture("Chair", "CHAIR-001", 4990, cat.ID)
	u := env.seedUser("u@example.com")
	require.NoError(t, env.DB.Create(&models.Review{Rating: 4, Comment: "ok", UserID: u.ID, FurnitureID: f.ID}).Error)

	rec, envlp := env.request(env.Review.ListForFurniture, http.MethodGet, "/api/v1/furniture/1/reviews", nil,
		withParams(nil, []string{"id"}, []string{fmt.Sprint(f.ID)}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, envlp.Data, 1)

	rec, _ = env.request(env.Review.ListForFurniture, http.MethodGet, "/api/v1/furniture/999/reviews", nil,
		withParams(nil, []string{"id"}, []string{"999"}))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewDeleteOwnership(t *testing.T) {
	env := newTestEnv(t)
	cat := env.seedCategory("chairs")
	f := env.seedFurniture("Chair", "CHAIR-001", 4990, cat.ID)
	author := env.seedUser("author@example.com")
	intruder := env.seedUser("intruder@example.com")

	review := models.Review{Rating: 3, UserID: author.ID, FurnitureID: f.ID}
	require.NoError(t, env.DB.Create(&review).Error)

	rec, envlp := env.request(env.Review.Delete, http.MethodDelete, "/api/v1/reviews/1", nil,
		withParams(asUser(intruder.ID), []string{"id"}, []string{fmt.Sprint(review.ID)}))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", envlp.Error.Code)

	rec, _ = env.request(env.Review.Delete, http.MethodDelete, "/api/v1/reviews/1", nil,
		withParams(asUser(author.ID), []string{"id"}, []string{fmt.Sprint(review.ID)}))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var n int64
	require.NoError(t, env.DB.Model(&models.Review{}).Count(&n).Error)
	require.Zero(t, n)
}
