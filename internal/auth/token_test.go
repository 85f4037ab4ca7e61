package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskflow/helpdesk-service/internal/domain"
	apperrors "github.com/deskflow/helpdesk-service/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	techID := int64(7)

	token, expiresAt, err := tm.GenerateToken(domain.Principal{UserID: 42, Role: domain.RoleTechnician, TechnicianID: &techID})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	p := claims.Principal()
	assert.Equal(t, int64(42), p.UserID)
	assert.Equal(t, domain.RoleTechnician, p.Role)
	require.NotNil(t, p.TechnicianID)
	assert.Equal(t, techID, *p.TechnicianID)
}

func TestTechnicianTokenNeedsTechnicianID(t *testing.T) {
	tm := NewTokenManager("secret", 15)
	_, _, err := tm.GenerateToken(domain.Principal{UserID: 1, Role: domain.RoleTechnician})
	assert.Error(t, err)
}

func TestParseTokenRejects(t *testing.T) {
	issuer := NewTokenManager("secret", 1)
	token, _, err := issuer.GenerateToken(domain.Principal{UserID: 1, Role: domain.RoleClient})
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenManager("other", 1).ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("secret", 1)
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := later.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.ParseToken("not-a-token")
		assert.Error(t, err)
	})
}

func newAuthApp(tm *TokenManager) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).SendString(domainErr.Code)
		},
	})
	mw := NewAuthMiddleware(tm)
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		p, _ := PrincipalFromContext(c)
		return c.JSON(fiber.Map{"user_id": p.UserID, "role": p.Role})
	})
	app.Get("/admin", mw.Handle, RequireAdmin(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newAuthApp(tm)
	client, _, err := tm.GenerateToken(domain.Principal{UserID: 3, Role: domain.RoleClient})
	require.NoError(t, err)
	admin, _, err := tm.GenerateToken(domain.Principal{UserID: 1, Role: domain.RoleAdministrator})
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"bad scheme", "/me", "Basic abc", http.StatusUnauthorized},
		{"bad token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"client ok", "/me", "Bearer " + client, http.StatusOK},
		{"client on admin route", "/admin", "Bearer " + client, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + admin, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
