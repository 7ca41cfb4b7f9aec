package handler

import (
	"github.com/gofiber/fiber/v2"

	"cyberprint/internal/http/middleware"
	"cyberprint/internal/model"
	"cyberprint/internal/service"
)

// SubmitDocument uploads a file on behalf of the authenticated owner.
// Fields: file, center_id.
//
// @Summary   Owner upload
// @Tags      documents
// @Security  BearerAuth
// @Accept    mpfd
// @Produce   json
// @Param     file      formData file   true "PDF or DOCX"
// @Param     center_id formData string true "target center"
// @Success   201 {object} model.Document
// @Failure   400 {object} errorPayload
// @Failure   401 {object} errorPayload
// @Router    /documents [post]
func SubmitDocument(intake service.IntakeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := middleware.PrincipalFromCtx(c)
		return submit(c, intake, c.FormValue("center_id"), p, model.Submitter{
			Name:  p.Name,
			Email: p.Email,
			Phone: p.Phone,
		})
	}
}

// ListMyDocuments pages through the caller's own submissions.
func ListMyDocuments(intake service.IntakeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, bad := pageParams(c)
		if bad != nil {
			return writeError(c, fiber.StatusBadRequest, bad.Code, bad.Message)
		}
		res, err := intake.ListMine(c.UserContext(), middleware.PrincipalFromCtx(c), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// GetDocument returns document metadata visible to the caller.
//
// @Summary   Document metadata
// @Tags      documents
// @Security  BearerAuth
// @Produce   json
// @Param     id path string true "document id"
// @Success   200 {object} model.Document
// @Failure   404 {object} errorPayload
// @Router    /documents/{id} [get]
func GetDocument(intake service.IntakeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := idParam(c)
		if !ok {
			return invalidID(c)
		}
		doc, err := intake.Get(c.UserContext(), middleware.PrincipalFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument withdraws a document and purges its bytes.
func DeleteDocument(intake service.IntakeService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := idParam(c)
		if !ok {
			return invalidID(c)
		}
		if err := intake.Delete(c.UserContext(), middleware.PrincipalFromCtx(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
