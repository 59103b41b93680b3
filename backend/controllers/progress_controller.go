package controllers

import (
	"errors"
	"strconv"

	"stoa/backend/config"
	"stoa/backend/services"
	"stoa/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type ProgressController struct {
	Cfg        *config.Config
	Gate       *services.Gate
	Aggregator *services.Aggregator
}

func NewProgressController(cfg *config.Config, gate *services.Gate, aggregator *services.Aggregator) *ProgressController {
	return &ProgressController{Cfg: cfg, Gate: gate, Aggregator: aggregator}
}

// UpdateLessonProgress godoc
// @Summary Toggle lesson completion
// @Description Marks a lesson completed or not; resume index defaults to the script's segment count
// @Tags progress
// @Router /lessons/{id}/progress [post]
func (pc *ProgressController) UpdateLessonProgress(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	lessonID, err := strconv.Atoi(c.Params("id"))
	if err != nil || lessonID <= 0 {
		return utils.BadRequest(c, "Invalid lesson ID")
	}

	var input struct {
		Completed    bool `json:"completed"`
		SegmentIndex *int `json:"segment_index"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}

	record, err := pc.Gate.ManualComplete(studentID, uint(lessonID), input.Completed, input.SegmentIndex)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLessonNotFound):
			return utils.NotFound(c, "Lesson not found")
		case errors.Is(err, services.ErrNotOwned):
			return utils.Forbidden(c, "Not enrolled in the unit owning this lesson")
		default:
			return utils.InternalServerError(c, "Could not save progress")
		}
	}

	return c.JSON(fiber.Map{
		"message":  "Progress updated",
		"progress": record,
	})
}

func (pc *ProgressController) GetUnitProgress(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	ref, err := parseUnitRef(c)
	if err != nil {
		return utils.BadRequest(c, err.Error())
	}

	progress, err := pc.Aggregator.UnitProgress(studentID, ref)
	if err != nil {
		if errors.Is(err, services.ErrUnitNotFound) {
			return utils.NotFound(c, "Unit not found")
		}
		return utils.InternalServerError(c, "Could not compute progress")
	}

	return c.JSON(progress)
}

func (pc *ProgressController) GetStreak(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	streak, err := pc.Aggregator.StreakDays(studentID)
	if err != nil {
		return utils.InternalServerError(c, "Could not compute streak")
	}

	return c.JSON(fiber.Map{
		"streak_days": streak,
	})
}

func (pc *ProgressController) GetActivity(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, pc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	windowDays := c.QueryInt("days", 30)
	histogram, err := pc.Aggregator.ActivityHistogram(studentID, windowDays)
	if err != nil {
		return utils.InternalServerError(c, "Could not compute activity")
	}

	return c.JSON(fiber.Map{
		"activity": histogram,
	})
}
