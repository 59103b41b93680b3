package controllers

import (
	"errors"
	"strconv"

	"stoa/backend/config"
	"stoa/backend/services"
	"stoa/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
)

type QuizController struct {
	Cfg  *config.Config
	Gate *services.Gate
}

func NewQuizController(cfg *config.Config, gate *services.Gate) *QuizController {
	return &QuizController{Cfg: cfg, Gate: gate}
}

// SubmitQuiz godoc
// @Summary Submit a quiz attempt
// @Description Stores the attempt and completes the lesson when the score passes
// @Tags quizzes
// @Router /lessons/{id}/quiz [post]
func (qc *QuizController) SubmitQuiz(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, qc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	lessonID, err := strconv.Atoi(c.Params("id"))
	if err != nil || lessonID <= 0 {
		return utils.BadRequest(c, "Invalid lesson ID")
	}

	var input struct {
		QuizID  uint           `json:"quiz_id"`
		Answers datatypes.JSON `json:"answers"`
		Score   int            `json:"score"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Cannot parse JSON")
	}
	if input.QuizID == 0 {
		return utils.BadRequest(c, "Quiz ID is required")
	}
	if input.Score < 0 || input.Score > 100 {
		return utils.BadRequest(c, "Score must be between 0 and 100")
	}

	attempt, err := qc.Gate.SubmitQuiz(studentID, uint(lessonID), input.QuizID, input.Answers, input.Score)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrLessonNotFound):
			return utils.NotFound(c, "Lesson not found")
		case errors.Is(err, services.ErrNotEnrolled):
			return utils.Forbidden(c, "Not enrolled in the unit owning this lesson")
		default:
			return utils.InternalServerError(c, "Could not save quiz attempt")
		}
	}

	return c.JSON(fiber.Map{
		"message": "Quiz attempt recorded",
		"attempt": attempt,
		"passed":  input.Score >= services.PassScore,
	})
}
