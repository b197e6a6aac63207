package token

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/config"
)

var (
	accessSecret  = []byte("test-access-secret")
	refreshSecret = []byte("test-refresh-secret")
)

func newService(t *testing.T) *TokenService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return &TokenService{DB: db, JWTSecret: accessSecret, RefreshSecret: refreshSecret}
}

func TestValidateRefresh(t *testing.T) {
	svc := newService(t)

	raw, err := SignRefreshToken(1, "user", refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, raw, 1, "user"))

	claims, err := ValidateRefresh(raw, refreshSecret, svc.DB)
	require.NoError(t, err)
	require.EqualValues(t, 1, claims["sub"])
	require.Equal(t, "user", claims["role"])

	// An access token is rejected: no typ claim.
	access, err := SignAccessToken(1, "user", refreshSecret)
	require.NoError(t, err)
	_, err = ValidateRefresh(access, refreshSecret, svc.DB)
	require.Error(t, err)

	// A token never saved server-side is rejected.
	orphan, err := SignRefreshToken(2, "user", refreshSecret)
	require.NoError(t, err)
	_, err = ValidateRefresh(orphan, refreshSecret, svc.DB)
	require.Error(t, err)

	// A revoked token is rejected.
	require.NoError(t, svc.RevokeRefresh(raw))
	_, err = ValidateRefresh(raw, refreshSecret, svc.DB)
	require.ErrorContains(t, err, "revoked")
}

func TestRotateToken(t *testing.T) {
	svc := newService(t)

	raw, err := SignRefreshToken(5, "admin", refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, raw, 5, "admin"))

	access, refresh, err := svc.RotateToken(raw)
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	require.NotEqual(t, raw, refresh)

	// The new refresh token is persisted and usable.
	claims, err := ValidateRefresh(refresh, refreshSecret, svc.DB)
	require.NoError(t, err)
	require.EqualValues(t, 5, claims["sub"])
	require.Equal(t, "admin", claims["role"])

	_, _, err = svc.RotateToken("garbage")
	require.Error(t, err)
}

// expiredAccessToken signs an access token whose exp is already in the past.
func expiredAccessToken(t *testing.T, userID uint, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  userID,
		"role": role,
		"exp":  time.Now().Add(-time.Minute).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(accessSecret)
	require.NoError(t, err)
	return raw
}

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, cookies ...*http.Cookie) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return rec, c, h(c)
}

func TestAutoRefreshMiddleware(t *testing.T) {
	svc := newService(t)

	// Valid access token passes straight through.
	access, err := SignAccessToken(9, "user", accessSecret)
	require.NoError(t, err)
	_, c, err := runMiddleware(t, svc.AutoRefreshMiddleware,
		&http.Cookie{Name: "accessToken", Value: access})
	require.NoError(t, err)
	require.Equal(t, uint(9), c.Get("userID"))
	require.Equal(t, "user", c.Get("role"))

	// No cookies at all.
	_, _, err = runMiddleware(t, svc.AutoRefreshMiddleware)
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// Garbage access token.
	_, _, err = runMiddleware(t, svc.AutoRefreshMiddleware,
		&http.Cookie{Name: "accessToken", Value: "garbage"})
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// Expired access + valid refresh rotates silently.
	refresh, err := SignRefreshToken(9, "user", refreshSecret)
	require.NoError(t, err)
	require.NoError(t, SaveRefreshToken(svc.DB, refresh, 9, "user"))

	rec, c, err := runMiddleware(t, svc.AutoRefreshMiddleware,
		&http.Cookie{Name: "accessToken", Value: expiredAccessToken(t, 9, "user")},
		&http.Cookie{Name: "refreshToken", Value: refresh})
	require.NoError(t, err)
	require.Equal(t, uint(9), c.Get("userID"))

	names := make(map[string]bool)
	for _, ck := range rec.Result().Cookies() {
		names[ck.Name] = true
	}
	require.True(t, names["accessToken"])
	require.True(t, names["refreshToken"])

	// Expired access + revoked refresh fails.
	require.NoError(t, svc.RevokeRefresh(refresh))
	_, _, err = runMiddleware(t, svc.AutoRefreshMiddleware,
		&http.Cookie{Name: "accessToken", Value: expiredAccessToken(t, 9, "user")},
		&http.Cookie{Name: "refreshToken", Value: refresh})
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestAutoRefreshMiddlewareAdmin(t *testing.T) {
	svc := newService(t)

	userToken, err := SignAccessToken(1, "user", accessSecret)
	require.NoError(t, err)
	_, _, err = runMiddleware(t, svc.AutoRefreshMiddlewareAdmin,
		&http.Cookie{Name: "accessToken", Value: userToken})
	require.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	adminToken, err := SignAccessToken(2, "admin", accessSecret)
	require.NoError(t, err)
	_, c, err := runMiddleware(t, svc.AutoRefreshMiddlewareAdmin,
		&http.Cookie{Name: "accessToken", Value: adminToken})
	require.NoError(t, err)
	require.Equal(t, "admin", c.Get("role"))
}

func TestUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := UserID(c)
	require.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	c.Set("userID", uint(3))
	id, err := UserID(c)
	require.NoError(t, err)
	require.Equal(t, uint(3), id)
}
