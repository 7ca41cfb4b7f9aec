package handler

import (
	"github.com/gofiber/fiber/v2"

	"cyberprint/internal/model"
	"cyberprint/internal/service"
)

// ListCenters returns a page of public center profiles.
//
// @Summary  List cyber centers
// @Tags     centers
// @Produce  json
// @Param    limit  query int false "page size" default(10)
// @Param    offset query int false "page offset" default(0)
// @Success  200 {object} service.CenterListResult
// @Failure  400 {object} errorPayload
// @Router   /centers [get]
func ListCenters(dir service.DirectoryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := pageParams(c)
		if bad != nil {
			return writeError(c, fiber.StatusBadRequest, bad.Code, bad.Message)
		}
		res, err := dir.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetCenter resolves a center id to its public profile.
//
// @Summary  Resolve a center
// @Tags     centers
// @Produce  json
// @Param    id path string true "center id"
// @Success  200 {object} model.CenterProfile
// @Failure  404 {object} errorPayload
// @Router   /centers/{id} [get]
func GetCenter(dir service.DirectoryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		profile, err := dir.Resolve(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(profile)
	}
}

// CenterUploadLink returns the anonymous upload URL a center displays.
func CenterUploadLink(dir service.DirectoryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		link, err := dir.BuildUploadLink(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": link})
	}
}

// CenterQRCode renders the upload link as a PNG. The optional size query sets the edge in pixels.
//
// @Summary  Upload link QR code
// @Tags     centers
// @Produce  png
// @Param    id   path  string true  "center id"
// @Param    size query int    false "edge length in pixels"
// @Success  200 {file} binary
// @Failure  404 {object} errorPayload
// @Router   /centers/{id}/qr.png [get]
func CenterQRCode(dir service.DirectoryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		png, err := dir.QRCode(c.UserContext(), c.Params("id"), c.QueryInt("size", 0))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		c.Type("png")
		return c.Send(png)
	}
}

// SubmitAnonymous accepts a multipart upload from a visitor who scanned the center's QR code.
// Fields: file, name, email, phone.
//
// @Summary  Anonymous upload to a center
// @Tags     documents
// @Accept   mpfd
// @Produce  json
// @Param    id    path     string true "center id"
// @Param    file  formData file   true "PDF or DOCX"
// @Param    name  formData string true "submitter name"
// @Param    email formData string true "submitter email"
// @Param    phone formData string true "submitter phone"
// @Success  201 {object} model.Document
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Router   /centers/{id}/documents [post]
func SubmitAnonymous(intake service.IntakeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return submit(c, intake, c.Params("id"), model.Principal{}, model.Submitter{
			Name:  c.FormValue("name"),
			Email: c.FormValue("email"),
			Phone: c.FormValue("phone"),
		})
	}
}

// submit streams the "file" form part into the intake service.
func submit(c *fiber.Ctx, intake service.IntakeService, centerID string, p model.Principal, who model.Submitter) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
	}
	defer f.Close()

	doc, err := intake.Submit(c.UserContext(), service.SubmitRequest{
		Reader:      f,
		FileName:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		CenterID:    centerID,
		OwnerID:     p.AccountID,
		Submitter:   who,
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(doc)
}
