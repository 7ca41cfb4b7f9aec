package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyberprint/internal/http/middleware"
	"cyberprint/internal/model"
	"cyberprint/internal/service"
)

func TestIssueToken_AcceptedByAuthenticate(t *testing.T) {
	secret := []byte("admin-secret")
	p := model.Principal{AccountID: "op-9", Role: model.RoleOperator, Name: "Budi"}

	token, err := issueToken(secret, "accounts", p, time.Hour, time.Now())
	require.NoError(t, err)

	app := fiber.New()
	app.Use(middleware.Authenticate(middleware.AuthConfig{Secret: secret, Issuer: "accounts"}))
	app.Get("/", func(c *fiber.Ctx) error { return c.JSON(middleware.PrincipalFromCtx(c)) })

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got model.Principal
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, p, got)
}

func TestIssueToken_Rejects(t *testing.T) {
	_, err := issueToken(nil, "", model.Principal{AccountID: "a", Role: model.RoleOwner}, time.Hour, time.Now())
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = issueToken([]byte("s"), "", model.Principal{AccountID: "a", Role: "admin"}, time.Hour, time.Now())
	assert.ErrorContains(t, err, "role must be")
}

func TestPrintCenters(t *testing.T) {
	var buf bytes.Buffer
	err := printCenters(&buf, &service.CenterListResult{
		Items: []model.CenterProfile{{ID: "c-1", Name: "Warnet Jaya", Address: "Jl. Merdeka 1"}},
		Total: 3,
	})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Warnet Jaya")
	assert.Contains(t, buf.String(), "1 of 3 centers")
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp(&bytes.Buffer{})

	names := map[string]bool{}
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	assert.True(t, names["migrate"])
	assert.True(t, names["center"])
	assert.True(t, names["token"])

	center := app.Command("center")
	require.NotNil(t, center)
	var subs []string
	for _, sub := range center.Subcommands {
		subs = append(subs, sub.Name)
	}
	assert.ElementsMatch(t, []string{"create", "list", "qr"}, subs)
}
