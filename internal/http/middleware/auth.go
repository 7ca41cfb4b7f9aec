package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"cyberprint/internal/model"
)

// PrincipalLocalKey is the Fiber locals key holding the caller's model.Principal.
const PrincipalLocalKey = "principal"

// Claims are the bearer token claims issued by the account service.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig verifies HS256 bearer tokens.
type AuthConfig struct {
	Secret []byte
	// Issuer, when set, must match the iss claim.
	Issuer string
}

// Authenticate parses an optional bearer token into a Principal stored under
// PrincipalLocalKey. Requests without a token continue anonymously; a present but
// invalid token is rejected with 401.
func Authenticate(cfg AuthConfig) fiber.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "malformed authorization header")
		}

		p, err := parsePrincipal(parser, cfg.Secret, strings.TrimSpace(raw))
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		c.Locals(PrincipalLocalKey, p)
		return c.Next()
	}
}

// RequireAuth rejects requests that Authenticate left anonymous.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !PrincipalFromCtx(c).Authenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		return c.Next()
	}
}

// PrincipalFromCtx returns the caller identity, or the zero Principal.
func PrincipalFromCtx(c *fiber.Ctx) model.Principal {
	if p, ok := c.Locals(PrincipalLocalKey).(model.Principal); ok {
		return p
	}
	return model.Principal{}
}

func parsePrincipal(parser *jwt.Parser, secret []byte, raw string) (model.Principal, error) {
	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return model.Principal{}, err
	}
	if claims.Subject == "" {
		return model.Principal{}, errors.New("token has no subject")
	}
	role := model.Role(claims.Role)
	if role != model.RoleOwner && role != model.RoleOperator {
		return model.Principal{}, errors.New("token has unknown role")
	}
	return model.Principal{
		AccountID: claims.Subject,
		Role:      role,
		Name:      claims.Name,
		Email:     claims.Email,
		Phone:     claims.Phone,
	}, nil
}
