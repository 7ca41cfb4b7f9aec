// Command cyberprint-admin runs one-off maintenance tasks against the print service database.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"
)

var version = "dev"

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "cyberprint-admin",
		Usage:     "Administer cyber centers and the print database",
		Version:   version,
		Writer:    out,
		ErrWriter: os.Stderr,
		Commands: []*cli.Command{
			{
				Name:   "migrate",
				Usage:  "Create the database schema if it does not exist",
				Action: migrate,
			},
			{
				Name:  "center",
				Usage: "Manage cyber centers",
				Subcommands: []*cli.Command{
					{
						Name:   "create",
						Usage:  "Register a center for an operator account",
						Action: createCenter,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "name", Usage: "display name", Required: true},
							&cli.StringFlag{Name: "address", Usage: "street address"},
							&cli.StringFlag{Name: "owner", Usage: "operator account id", Required: true},
						},
					},
					{
						Name:   "list",
						Usage:  "List active centers",
						Action: listCenters,
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 50},
							&cli.IntFlag{Name: "offset", Value: 0},
						},
					},
					{
						Name:   "qr",
						Usage:  "Write a center's upload QR code as PNG",
						Action: centerQR,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "id", Usage: "center id", Required: true},
							&cli.StringFlag{Name: "out", Usage: "output file", Value: "center-qr.png"},
							&cli.IntFlag{Name: "size", Usage: "edge length in pixels", Value: 512},
						},
					},
				},
			},
			{
				Name:  "token",
				Usage: "Development bearer tokens",
				Subcommands: []*cli.Command{
					{
						Name:   "issue",
						Usage:  "Sign a bearer token with JWT_SECRET",
						Action: issueTokenCmd,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "sub", Usage: "account id", Required: true},
							&cli.StringFlag{Name: "role", Usage: "owner or operator", Value: "owner"},
							&cli.StringFlag{Name: "name"},
							&cli.StringFlag{Name: "email"},
							&cli.StringFlag{Name: "phone"},
							&cli.DurationFlag{Name: "ttl", Value: 12 * time.Hour},
						},
					},
				},
			},
		},
	}
}
