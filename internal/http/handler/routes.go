package handler

import (
	"context"
	"database/sql"
	"time"

	"github.com/gofiber/fiber/v2"

	"docvoice/internal/apperr"
	"docvoice/internal/http/middleware"
	"docvoice/internal/intake"
	"docvoice/internal/model"
	"docvoice/internal/service"
)

// BodyLimit is the server request body ceiling. It sits above the upload limit
// so oversized PDFs reach intake and get UPLOAD_FILE_TOO_LARGE instead of a bare 413.
const BodyLimit = int(2 * intake.MaxUploadBytes)

// Deps are the collaborators the HTTP routes are served by.
type Deps struct {
	DB          *sql.DB
	Resolver    middleware.PrincipalResolver
	Conversions service.ConversionService
	Speech      service.SpeechService
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers translate between HTTP and the services; all failures go to the global error handler.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api", middleware.RequireAuth(d.Resolver))

	pdf := api.Group("/pdf")
	pdf.Post("/upload", UploadPDF(d.Conversions))
	pdf.Get("/", ListPDFs(d.Conversions))
	pdf.Get("/:id", GetPDF(d.Conversions))
	pdf.Delete("/:id", DeletePDF(d.Conversions))
	pdf.Get("/:id/download", DownloadPDF(d.Conversions))
	pdf.Get("/:id/file", PDFContent(d.Conversions))
	pdf.Post("/:id/speech", SynthesizeSpeech(d.Speech))
	pdf.Get("/:id/audio", AudioURL(d.Speech))

	speech := api.Group("/speech")
	speech.Post("/validate", ValidateText(d.Speech))
	speech.Get("/voices", ListVoices(d.Speech))
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Pings the database
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable", "")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe godoc
// @Summary Liveness probe
// @Tags health
// @Success 200
// @Router /healthz [get]
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// principal returns the caller stored by middleware.RequireAuth.
func principal(c *fiber.Ctx) (model.Principal, error) {
	p, ok := middleware.Principal(c)
	if !ok {
		return model.Principal{}, apperr.New(apperr.NoToken, "no token provided")
	}
	return p, nil
}
