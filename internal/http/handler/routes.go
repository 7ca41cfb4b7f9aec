package handler

import (
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"cyberprint/internal/http/middleware"
	"cyberprint/internal/service"
)

// Services groups the domain services the HTTP layer depends on.
type Services struct {
	Intake    service.IntakeService
	Directory service.DirectoryService
	OTP       service.OTPService
	Print     service.PrintService
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Bearer tokens are parsed on every route; routes below the auth group require one.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, auth middleware.AuthConfig) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Use(middleware.Authenticate(auth))

	centers := app.Group("/centers")
	centers.Get("/", ListCenters(svc.Directory))
	centers.Get("/:id", GetCenter(svc.Directory))
	centers.Get("/:id/upload-link", CenterUploadLink(svc.Directory))
	centers.Get("/:id/qr.png", CenterQRCode(svc.Directory))
	centers.Post("/:id/documents", uploadLimiter(), SubmitAnonymous(svc.Intake))

	authed := middleware.RequireAuth()

	docs := app.Group("/documents")
	docs.Post("/", authed, SubmitDocument(svc.Intake))
	docs.Get("/mine", authed, ListMyDocuments(svc.Intake))
	docs.Get("/:id", authed, GetDocument(svc.Intake))
	docs.Delete("/:id", authed, DeleteDocument(svc.Intake))

	operator := app.Group("/center")
	operator.Get("/documents", authed, CenterDocuments(svc.Intake))
	operator.Post("/documents/:id/otp", authed, IssueOTP(svc.OTP))
	operator.Post("/documents/:id/verify", authed, VerifyOTP(svc.OTP))
	operator.Post("/documents/:id/printed", authed, MarkPrinted(svc.Print))

	app.Get("/print/:grant", authed, FetchContent(svc.Print))
}

// uploadLimiter throttles anonymous uploads per client IP.
func uploadLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusTooManyRequests, "RATE_LIMITED", "too many uploads, try again later")
		},
	})
}
