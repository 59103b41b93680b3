package routes

import (
	"log"

	"stoa/backend/catalog"
	"stoa/backend/config"
	"stoa/backend/controllers"
	"stoa/backend/middleware"
	"stoa/backend/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config, logger *log.Logger) {
	ct := catalog.NewCatalog(db)
	cascade := services.NewCascade(db, ct, logger, cfg.CascadeWorkers)
	gate := services.NewGate(db, ct, logger)
	aggregator := services.NewAggregator(db, ct)
	certificates := services.NewCertificates(db, logger)

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	authMiddleware := middleware.AuthMiddleware(cfg)

	// Enrollment routes
	enrollmentController := controllers.NewEnrollmentController(db, cfg, cascade, aggregator, ct)
	units := app.Group("/api/units", authMiddleware)
	units.Get("/", enrollmentController.ListMyUnits)
	units.Post("/:kind/:id/enroll", enrollmentController.Enroll)
	units.Get("/:kind/:id", enrollmentController.GetUnitDetail)

	// Progress routes
	progressController := controllers.NewProgressController(cfg, gate, aggregator)
	units.Get("/:kind/:id/progress", progressController.GetUnitProgress)
	app.Post("/api/lessons/:id/progress", authMiddleware, progressController.UpdateLessonProgress)
	app.Get("/api/progress/streak", authMiddleware, progressController.GetStreak)
	app.Get("/api/progress/activity", authMiddleware, progressController.GetActivity)

	// Quiz routes
	quizController := controllers.NewQuizController(cfg, gate)
	app.Post("/api/lessons/:id/quiz", authMiddleware, quizController.SubmitQuiz)

	// Calendar routes
	calendarController := controllers.NewCalendarController(cfg, aggregator)
	app.Get("/api/progress/daily", authMiddleware, calendarController.GetDailyLessons)
	app.Get("/api/progress/calendar", authMiddleware, calendarController.GetMonthCalendar)

	// Certificate routes
	certificateController := controllers.NewCertificateController(cfg, certificates)
	app.Post("/api/certifications/:id/certificate", authMiddleware, certificateController.Issue)
}
