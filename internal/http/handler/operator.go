package handler

import (
	"mime"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"cyberprint/internal/http/middleware"
	"cyberprint/internal/service"
)

type verifyRequest struct {
	OTP string `json:"otp"`
}

type verifyResponse struct {
	Grant      string    `json:"grant"`
	ExpiresAt  time.Time `json:"expires_at"`
	ContentURL string    `json:"content_url"`
}

// CenterDocuments lists the operator's active documents grouped by submitter.
//
// @Summary   Center dashboard
// @Tags      operator
// @Security  BearerAuth
// @Produce   json
// @Success   200 {array}  service.SubmitterGroup
// @Failure   403 {object} errorPayload
// @Router    /center/documents [get]
func CenterDocuments(intake service.IntakeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, err := intake.ListForCenter(c.UserContext(), middleware.PrincipalFromCtx(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"data": groups})
	}
}

// IssueOTP sends a one-time code to the document's submitter. The code is never returned here.
//
// @Summary   Issue a one-time code
// @Tags      operator
// @Security  BearerAuth
// @Produce   json
// @Param     id path string true "document id"
// @Success   201 {object} service.IssuedCode
// @Failure   409 {object} errorPayload
// @Failure   503 {object} errorPayload
// @Router    /center/documents/{id}/otp [post]
func IssueOTP(otp service.OTPService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := idParam(c)
		if !ok {
			return invalidID(c)
		}
		issued, err := otp.Issue(c.UserContext(), middleware.PrincipalFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(issued)
	}
}

// VerifyOTP exchanges the code read out by the submitter for a content access grant.
//
// @Summary   Verify a one-time code
// @Tags      operator
// @Security  BearerAuth
// @Accept    json
// @Produce   json
// @Param     id   path string        true "document id"
// @Param     body body verifyRequest true "code"
// @Success   200 {object} verifyResponse
// @Failure   403 {object} errorPayload
// @Failure   409 {object} errorPayload
// @Router    /center/documents/{id}/verify [post]
func VerifyOTP(otp service.OTPService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := idParam(c)
		if !ok {
			return invalidID(c)
		}
		var req verifyRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be {\"otp\": \"...\"}")
		}

		g, err := otp.Verify(c.UserContext(), middleware.PrincipalFromCtx(c), id, strings.TrimSpace(req.OTP))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(verifyResponse{
			Grant:      g.Token,
			ExpiresAt:  g.ExpiresAt.UTC(),
			ContentURL: "/print/" + g.Token,
		})
	}
}

// FetchContent streams the document bytes for a grant. A grant works once.
//
// @Summary   Fetch content for printing
// @Tags      operator
// @Security  BearerAuth
// @Produce   octet-stream
// @Param     grant path string true "grant token"
// @Success   200 {file} binary
// @Failure   403 {object} errorPayload
// @Failure   503 {object} errorPayload
// @Router    /print/{grant} [get]
func FetchContent(printer service.PrintService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, err := printer.Open(c.UserContext(), middleware.PrincipalFromCtx(c), c.Params("grant"))
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentType, session.ContentType)
		c.Set(fiber.HeaderCacheControl, "no-store")
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{
			"filename": session.Document.Filename,
		}))
		c.Set("X-Document-Id", session.Document.ID)
		size := -1
		if session.Size > 0 {
			size = int(session.Size)
		}
		// fasthttp closes the reader once the body is written.
		return c.SendStream(session.Reader, size)
	}
}

// MarkPrinted confirms that a delivered document was printed.
func MarkPrinted(printer service.PrintService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := idParam(c)
		if !ok {
			return invalidID(c)
		}
		doc, err := printer.MarkPrinted(c.UserContext(), middleware.PrincipalFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}
