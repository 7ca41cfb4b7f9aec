package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/urfave/cli/v2"

	"cyberprint/internal/config"
	"cyberprint/internal/database"
	"cyberprint/internal/database/migration"
	"cyberprint/internal/http/middleware"
	"cyberprint/internal/logging"
	"cyberprint/internal/model"
	"cyberprint/internal/repository/postgres"
	"cyberprint/internal/service"
)

// directory opens the database and returns the center directory over it.
func directory(c *cli.Context, cfg *config.AppConfig) (service.DirectoryService, func() error, error) {
	db, err := database.NewPostgres(c.Context, cfg.Database, nil)
	if err != nil {
		return nil, nil, err
	}
	return service.NewDirectoryService(postgres.NewCenterPostgres(db), cfg.PublicBaseURL), db.Close, nil
}

func migrate(c *cli.Context) error {
	cfg := config.Load()
	log := logging.New(cfg.Log)
	defer log.Sync()

	db, err := database.NewPostgres(c.Context, cfg.Database, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migration.EnsureMigrated(c.Context, db, log, cfg.Database.Host); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "schema is up to date")
	return nil
}

func createCenter(c *cli.Context) error {
	cfg := config.Load()
	dir, closeDB, err := directory(c, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	center, err := dir.Create(c.Context, c.String("name"), c.String("address"), c.String("owner"))
	if err != nil {
		return err
	}
	link, err := dir.BuildUploadLink(c.Context, center.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "center %s created\nupload link: %s\n", center.ID, link)
	return nil
}

func listCenters(c *cli.Context) error {
	cfg := config.Load()
	dir, closeDB, err := directory(c, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	res, err := dir.List(c.Context, c.Int("limit"), c.Int("offset"))
	if err != nil {
		return err
	}
	return printCenters(c.App.Writer, res)
}

func printCenters(w io.Writer, res *service.CenterListResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS")
	for _, p := range res.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, p.Address)
	}
	fmt.Fprintf(tw, "\n%d of %d centers\n", len(res.Items), res.Total)
	return tw.Flush()
}

func centerQR(c *cli.Context) error {
	cfg := config.Load()
	dir, closeDB, err := directory(c, cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	png, err := dir.QRCode(c.Context, c.String("id"), c.Int("size"))
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.String("out"), png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.String("out"), err)
	}
	fmt.Fprintf(c.App.Writer, "wrote %s (%d bytes)\n", c.String("out"), len(png))
	return nil
}

func issueTokenCmd(c *cli.Context) error {
	cfg := config.Load()
	p := model.Principal{
		AccountID: c.String("sub"),
		Role:      model.Role(c.String("role")),
		Name:      c.String("name"),
		Email:     c.String("email"),
		Phone:     c.String("phone"),
	}
	token, err := issueToken([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer, p, c.Duration("ttl"), time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, token)
	return nil
}

// issueToken signs the claims middleware.Authenticate accepts.
func issueToken(secret []byte, issuer string, p model.Principal, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}
	if p.Role != model.RoleOwner && p.Role != model.RoleOperator {
		return "", fmt.Errorf("role must be %q or %q", model.RoleOwner, model.RoleOperator)
	}
	claims := middleware.Claims{
		Role:  string(p.Role),
		Name:  p.Name,
		Email: p.Email,
		Phone: p.Phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.AccountID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
