package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberprint/internal/model"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(role string) Claims {
	return Claims{
		Role:  role,
		Name:  "Sari",
		Email: "sari@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "accounts",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newAuthApp() *fiber.App {
	app := fiber.New()
	app.Use(Authenticate(AuthConfig{Secret: testSecret, Issuer: "accounts"}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		p := PrincipalFromCtx(c)
		return c.JSON(fiber.Map{"id": p.AccountID, "role": p.Role})
	})
	app.Get("/private", RequireAuth(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestAuthenticate(t *testing.T) {
	app := newAuthApp()

	expired := validClaims("owner")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongIssuer := validClaims("owner")
	wrongIssuer.Issuer = "elsewhere"

	tests := []struct {
		name   string
		header string
		path   string
		status int
	}{
		{name: "anonymous allowed", path: "/whoami", status: fiber.StatusOK},
		{name: "anonymous rejected on private", path: "/private", status: fiber.StatusUnauthorized},
		{name: "valid operator", path: "/private", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("operator")), status: fiber.StatusNoContent},
		{name: "bad signature", path: "/whoami", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims("owner")), status: fiber.StatusUnauthorized},
		{name: "wrong algorithm", path: "/whoami", header: "Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret, validClaims("owner")), status: fiber.StatusUnauthorized},
		{name: "expired", path: "/whoami", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, expired), status: fiber.StatusUnauthorized},
		{name: "wrong issuer", path: "/whoami", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, wrongIssuer), status: fiber.StatusUnauthorized},
		{name: "unknown role", path: "/whoami", header: "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("admin")), status: fiber.StatusUnauthorized},
		{name: "malformed header", path: "/whoami", header: "Token abc", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestParsePrincipal(t *testing.T) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	raw := signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("operator"))

	p, err := parsePrincipal(parser, testSecret, raw)
	require.NoError(t, err)
	assert.Equal(t, model.Principal{AccountID: "acc-1", Role: model.RoleOperator, Name: "Sari", Email: "sari@example.com"}, p)
	assert.True(t, p.IsOperator())
}
