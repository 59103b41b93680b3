package controllers

import (
	"time"

	"stoa/backend/config"
	"stoa/backend/services"
	"stoa/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type CalendarController struct {
	Cfg        *config.Config
	Aggregator *services.Aggregator
}

func NewCalendarController(cfg *config.Config, aggregator *services.Aggregator) *CalendarController {
	return &CalendarController{Cfg: cfg, Aggregator: aggregator}
}

func (cc *CalendarController) GetDailyLessons(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, cc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		date, err = time.Parse("2006-01-02", raw)
		if err != nil {
			return utils.BadRequest(c, "Invalid date format. Use YYYY-MM-DD")
		}
	}

	lessons, err := cc.Aggregator.DailyLessons(studentID, date)
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{
		"date":    date.Format("2006-01-02"),
		"lessons": lessons,
	})
}

func (cc *CalendarController) GetMonthCalendar(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, cc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	now := time.Now().UTC()
	year := c.QueryInt("year", now.Year())
	month := c.QueryInt("month", int(now.Month()))
	if month < 1 || month > 12 {
		return utils.BadRequest(c, "Month must be between 1 and 12")
	}

	calendar, err := cc.Aggregator.MonthCalendar(studentID, year, time.Month(month))
	if err != nil {
		return utils.InternalServerError(c, "Could not query database")
	}

	return c.JSON(fiber.Map{
		"year":     year,
		"month":    month,
		"calendar": calendar,
	})
}
