package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"docvoice/internal/apperr"
	"docvoice/internal/model"
	"docvoice/internal/service"
)

var validate = validator.New()

// speechRequest is the body of POST /api/pdf/:id/speech. Omitted settings keep their defaults.
type speechRequest struct {
	Text     string              `json:"text" validate:"max=20000"`
	Optimize bool                `json:"optimize"`
	Settings model.AudioSettings `json:"settings"`
}

// validateTextRequest is the body of POST /api/speech/validate.
type validateTextRequest struct {
	Text     string         `json:"text" validate:"required"`
	Language model.Language `json:"language" validate:"omitempty,oneof=en ru"`
}

// parseBody decodes an optional JSON body into dst and validates it.
func parseBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return apperr.Wrap(err, apperr.InvalidRequest, "invalid request body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.WithDetails(apperr.New(apperr.InvalidRequest, "invalid request body"), err.Error())
	}
	return nil
}

// SynthesizeSpeech godoc
// @Summary Render speech for a completed document
// @Description Uses the request text or the document summary. The language defaults to the detected one.
// @Tags speech
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "document id"
// @Param request body speechRequest false "speech options"
// @Success 200 {object} service.SpeechResult
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/pdf/{id}/speech [post]
func SynthesizeSpeech(svc service.SpeechService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}

		req := speechRequest{Settings: model.DefaultAudioSettings("")}
		if err := parseBody(c, &req); err != nil {
			return err
		}

		res, err := svc.Synthesize(c.UserContext(), p, c.Params("id"), service.SpeechRequest{
			Text:     req.Text,
			Optimize: req.Optimize,
			Settings: req.Settings,
		})
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// AudioURL godoc
// @Summary Signed link to the document audio
// @Tags speech
// @Produce json
// @Security BearerAuth
// @Param id path string true "document id"
// @Success 200 {object} service.SignedURL
// @Failure 404 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Router /api/pdf/{id}/audio [get]
func AudioURL(svc service.SpeechService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := principal(c)
		if err != nil {
			return err
		}
		u, err := svc.AudioURL(c.UserContext(), p, c.Params("id"))
		if err != nil {
			return err
		}
		return c.JSON(u)
	}
}

// ValidateText godoc
// @Summary Check that text can be synthesized
// @Tags speech
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body validateTextRequest true "text to check"
// @Success 200 {object} model.TextValidation
// @Failure 400 {object} errorPayload
// @Router /api/speech/validate [post]
func ValidateText(svc service.SpeechService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req validateTextRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.Language == "" {
			req.Language = model.LanguageEN
		}
		res, err := svc.ValidateText(c.UserContext(), req.Text, req.Language)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// ListVoices godoc
// @Summary Voice catalogue grouped by locale
// @Tags speech
// @Produce json
// @Security BearerAuth
// @Param language query string false "locale prefix, e.g. ru"
// @Success 200 {array} model.VoiceGroup
// @Failure 500 {object} errorPayload
// @Router /api/speech/voices [get]
func ListVoices(svc service.SpeechService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		groups, err := svc.Voices(c.UserContext(), c.Query("language"))
		if err != nil {
			return err
		}
		return c.JSON(groups)
	}
}
