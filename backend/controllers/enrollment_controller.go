package controllers

import (
	"errors"
	"strconv"

	"stoa/backend/catalog"
	"stoa/backend/config"
	"stoa/backend/models"
	"stoa/backend/services"
	"stoa/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type EnrollmentController struct {
	DB         *gorm.DB
	Cfg        *config.Config
	Cascade    *services.Cascade
	Aggregator *services.Aggregator
	Catalog    *catalog.Catalog
}

func NewEnrollmentController(db *gorm.DB, cfg *config.Config, cascade *services.Cascade,
	aggregator *services.Aggregator, ct *catalog.Catalog) *EnrollmentController {
	return &EnrollmentController{DB: db, Cfg: cfg, Cascade: cascade, Aggregator: aggregator, Catalog: ct}
}

// parseUnitRef reads the :kind/:id route params into a unit reference.
func parseUnitRef(c *fiber.Ctx) (catalog.UnitRef, error) {
	kind := c.Params("kind")
	switch kind {
	case models.UnitKindCourse, models.UnitKindCertification, models.UnitKindPath:
	default:
		return catalog.UnitRef{}, errors.New("invalid unit kind")
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil || id <= 0 {
		return catalog.UnitRef{}, errors.New("invalid unit ID")
	}

	return catalog.UnitRef{Kind: kind, ID: uint(id)}, nil
}

// Enroll godoc
// @Summary Enroll in a unit
// @Description Enrolls the student in a course, certification or learning path
// @Tags enrollments
// @Router /units/{kind}/{id}/enroll [post]
func (ec *EnrollmentController) Enroll(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, ec.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	ref, err := parseUnitRef(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	record, err := ec.Cascade.Enroll(studentID, ref)
	if err != nil {
		if errors.Is(err, services.ErrUnitNotFound) {
			return utils.NotFound(c, "Unit not found")
		}
		return utils.InternalServerError(c, "Could not enroll")
	}

	return c.JSON(fiber.Map{
		"message":    "Enrolled",
		"enrollment": record,
	})
}

func (ec *EnrollmentController) ListMyUnits(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, ec.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	var enrollments []models.EnrollmentRecord
	if err := ec.DB.Where("student_id = ?", studentID).
		Order("enrolled_at desc").Find(&enrollments).Error; err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	result := make([]fiber.Map, 0, len(enrollments))
	for _, enrollment := range enrollments {
		ref := catalog.UnitRef{Kind: enrollment.UnitKind, ID: enrollment.UnitID}
		entry := fiber.Map{
			"unit_kind":      enrollment.UnitKind,
			"unit_id":        enrollment.UnitID,
			"enrolled_at":    enrollment.EnrolledAt,
			"completed_at":   enrollment.CompletedAt,
			"certificate_id": enrollment.CertificateID,
		}
		if progress, err := ec.Aggregator.UnitProgress(studentID, ref); err == nil {
			entry["progress"] = progress
		}
		result = append(result, entry)
	}

	return c.JSON(fiber.Map{
		"units": result,
	})
}

func (ec *EnrollmentController) GetUnitDetail(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, ec.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	ref, err := parseUnitRef(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	exists, err := ec.Catalog.UnitExists(ref)
	if err != nil || !exists {
		return utils.NotFound(c, "Unit not found")
	}

	lessons, err := ec.Catalog.UnitLessons(ref)
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	lessonViews := make([]fiber.Map, 0, len(lessons))
	for _, lesson := range lessons {
		view := fiber.Map{
			"id":             lesson.ID,
			"module_id":      lesson.ModuleID,
			"title":          lesson.Title,
			"lesson_order":   lesson.LessonOrder,
			"duration":       lesson.Duration,
			"scheduled_date": lesson.ScheduledDate,
			"segments":       services.CountSegments(lesson.LessonScript),
		}

		// A missing progress record reads as not started.
		var progress models.ProgressRecord
		if err := ec.DB.Where("student_id = ? AND lesson_id = ?",
			studentID, lesson.ID).First(&progress).Error; err == nil {
			view["completed"] = progress.Completed
			view["completed_at"] = progress.CompletedAt
			view["resume_segment"] = progress.LastCompletedSegmentIndex
		} else {
			view["completed"] = false
			view["resume_segment"] = 0
		}

		lessonViews = append(lessonViews, view)
	}

	return c.JSON(fiber.Map{
		"unit_kind": ref.Kind,
		"unit_id":   ref.ID,
		"lessons":   lessonViews,
	})
}
