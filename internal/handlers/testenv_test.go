package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/config"
	"github.com/skorokhod/furniture_shop/internal/httpx"
	"github.com/skorokhod/furniture_shop/internal/models"
	"github.com/skorokhod/furniture_shop/internal/service/orders"
	"github.com/skorokhod/furniture_shop/internal/service/recommend"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB

	Auth      *AuthHandler
	Furniture *FurnitureHandler
	Category  *CategoryHandler
	Review    *ReviewHandler
	Order     *OrderHandler
	Recs      *RecommendationHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	e := echo.New()
	e.HTTPErrorHandler = httpx.ErrorHandler(false)

	return &testEnv{
		T:  t,
		E:  e,
		DB: db,

		Auth:      &AuthHandler{DB: db, JWTSecret: []byte("test-secret"), RefreshSecret: []byte("test-refresh")},
		Furniture: &FurnitureHandler{DB: db},
		Category:  &CategoryHandler{DB: db},
		Review:    &ReviewHandler{DB: db},
		Order:     &OrderHandler{Svc: orders.New(db, time.Second)},
		Recs:      &RecommendationHandler{Composer: recommend.New(db, time.Second)},
	}
}

// invoke runs a handler directly, funnelling returned errors through the
// boundary error handler so the recorder sees the envelope and status the
// client would.
func (env *testEnv) invoke(h echo.HandlerFunc, rec *httptest.ResponseRecorder, c echo.Context) httpx.Envelope {
	env.T.Helper()
	if err := h(c); err != nil {
		env.E.HTTPErrorHandler(err, c)
	}
	var envlp httpx.Envelope
	if rec.Body.Len() > 0 {
		require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &envlp))
	}
	return envlp
}

// request builds the context, applies setup, runs the handler and decodes
// the envelope.
func (env *testEnv) request(h echo.HandlerFunc, method, path string, body any, setup func(echo.Context)) (*httptest.ResponseRecorder, httpx.Envelope) {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	envlp := env.invoke(h, rec, c)
	return rec, envlp
}

func asUser(id uint) func(echo.Context) {
	return func(c echo.Context) {
		c.Set("userID", id)
		c.Set("role", "user")
	}
}

func withParams(setup func(echo.Context), names []string, values []string) func(echo.Context) {
	return func(c echo.Context) {
		if setup != nil {
			setup(c)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
}

func (env *testEnv) seedCategory(name string) models.Category {
	env.T.Helper()
	cat := models.Category{Name: name}
	require.NoError(env.T, env.DB.Create(&cat).Error)
	return cat
}

func (env *testEnv) seedFurniture(name, sku string, priceCents int64, categoryID uint) models.Furniture {
	env.T.Helper()
	f := models.Furniture{
		Name:       name,
		PriceCents: priceCents,
		SKU:        sku,
		WidthCM:    100, HeightCM: 80, DepthCM: 60,
		CategoryID: categoryID,
		CreatedAt:  time.Now(),
	}
	require.NoError(env.T, env.DB.Create(&f).Error)
	return f
}

func (env *testEnv) seedUser(email string) models.User {
	env.T.Helper()
	u := models.User{Email: email, PasswordHash: "x", Name: "Test User", Role: "user"}
	require.NoError(env.T, env.DB.Create(&u).Error)
	return u
}

func (env *testEnv) seedCompletedOrder(userID uint, furnitureIDs ...uint) models.Order {
	env.T.Helper()
	order := models.Order{UserID: &userID, Status: models.OrderStatusCompleted}
	for _, id := range furnitureIDs {
		order.Items = append(order.Items, models.OrderItem{FurnitureID: id, Quantity: 1, UnitPriceCents: 1000})
		order.TotalCents += 1000
	}
	require.NoError(env.T, env.DB.Create(&order).Error)
	return order
}

func dataMap(t *testing.T, envlp httpx.Envelope) map[string]any {
	t.Helper()
	m, ok := envlp.Data.(map[string]any)
	require.True(t, ok, "expected object payload, got %T", envlp.Data)
	return m
}
