package handler

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"docvoice/internal/apperr"
	"docvoice/internal/service"
)

// UploadPDF godoc
// @Summary Upload and analyze a PDF
// @Description Stores the file, extracts its text and returns the analysis. Free accounts are limited per day.
// @Tags pdf
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param pdf formData file true "PDF document"
// @Success 200 {object} service.ConversionResult
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 422 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/pdf/upload [post]
func UploadPDF(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}

		in := service.UploadInput{}
		if fh, err := c.FormFile("pdf"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return apperr.Wrap(err, apperr.UploadError, "cannot open uploaded file")
			}
			defer f.Close()

			in = service.UploadInput{
				Present:  true,
				FileName: fh.Filename,
				MimeType: fh.Header.Get(fiber.HeaderContentType),
				Size:     fh.Size,
				Content:  f,
			}
		}

		res, err := svc.Convert(c.UserContext(), p, in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}

// ListPDFs godoc
// @Summary List the caller's documents
// @Tags pdf
// @Produce json
// @Security BearerAuth
// @Param limit query int false "page size" default(10)
// @Param offset query int false "offset" default(0)
// @Success 200 {object} service.JobListResult
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Router /api/pdf [get]
func ListPDFs(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return apperr.New(apperr.InvalidRequest, "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return apperr.New(apperr.InvalidRequest, "invalid offset")
		}

		res, err := svc.List(c.UserContext(), p, limit, offset)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// GetPDF godoc
// @Summary Get one document
// @Tags pdf
// @Produce json
// @Security BearerAuth
// @Param id path string true "document id"
// @Success 200 {object} model.ConversionJob
// @Failure 404 {object} errorPayload
// @Router /api/pdf/{id} [get]
func GetPDF(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		job, err := svc.Get(c.UserContext(), p, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(job)
	}
}

// DeletePDF godoc
// @Summary Delete a document with its PDF and audio
// @Tags pdf
// @Security BearerAuth
// @Param id path string true "document id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/pdf/{id} [delete]
func DeletePDF(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), p, c.Params("id")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadPDF godoc
// @Summary Signed download link for the stored PDF
// @Tags pdf
// @Produce json
// @Security BearerAuth
// @Param id path string true "document id"
// @Success 200 {object} service.SignedURL
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/pdf/{id}/download [get]
func DownloadPDF(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		u, err := svc.DownloadURL(c.UserContext(), p, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(u)
	}
}

// PDFContent godoc
// @Summary Stream the stored PDF
// @Tags pdf
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "document id"
// @Success 200 {file} file
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/pdf/{id}/file [get]
func PDFContent(svc service.ConversionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		f, err := svc.Content(c.UserContext(), p, c.Params("id"))
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, f.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", f.FileName))
		size := -1
		if f.Size > 0 {
			size = int(f.Size)
		}
		return c.SendStream(f.Body, size)
	}
}
