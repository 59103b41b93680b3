package services

import (
	"errors"
	"math"
	"time"

	"stoa/backend/catalog"
	"stoa/backend/models"

	"gorm.io/gorm"
)

// UnitProgress is the live completion summary for one (student, unit) pair.
type UnitProgress struct {
	Percent        int `json:"percent"`
	CompletedCount int `json:"completed_count"`
	TotalCount     int `json:"total_count"`
}

// ActivityDay is one bucket of the trailing activity histogram.
type ActivityDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ScheduledLesson pairs a scheduled lesson with the student's progress on it.
type ScheduledLesson struct {
	Lesson   models.Lesson         `json:"lesson"`
	Progress models.ProgressRecord `json:"progress"`
	Segments int                   `json:"segments"`
}

// CalendarDay groups a month's scheduled lessons by day.
type CalendarDay struct {
	Date    string            `json:"date"`
	Lessons []ScheduledLesson `json:"lessons"`
}

// Aggregator derives read-side metrics from raw progress history. It never
// mutates storage; every number is recomputed on demand.
type Aggregator struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog
	Now     func() time.Time
}

func NewAggregator(db *gorm.DB, ct *catalog.Catalog) *Aggregator {
	return &Aggregator{DB: db, Catalog: ct, Now: time.Now}
}

// UnitProgress computes the live percent-complete over the unit's descendant
// lessons. A missing progress record counts as not started. A unit with no
// lessons reports zero percent.
func (ag *Aggregator) UnitProgress(studentID uint, ref catalog.UnitRef) (*UnitProgress, error) {
	exists, err := ag.Catalog.UnitExists(ref)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownKind) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	if !exists {
		return nil, ErrUnitNotFound
	}

	completed, total, err := unitCompletion(ag.DB, ag.Catalog, studentID, ref)
	if err != nil {
		return nil, err
	}

	return &UnitProgress{
		Percent:        roundPercent(completed, total),
		CompletedCount: completed,
		TotalCount:     total,
	}, nil
}

// StreakDays counts consecutive calendar days with at least one lesson
// completion, walking back from the most recent completion day. The streak is
// zero unless that day is today or yesterday.
func (ag *Aggregator) StreakDays(studentID uint) (int, error) {
	days, err := ag.completionDays(studentID)
	if err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}

	var latest time.Time
	for day := range days {
		if day.After(latest) {
			latest = day
		}
	}

	today := truncateToDay(ag.Now().UTC())
	if latest.Before(today.AddDate(0, 0, -1)) {
		return 0, nil
	}

	streak := 0
	for day := latest; days[day]; day = day.AddDate(0, 0, -1) {
		streak++
	}
	return streak, nil
}

// MaxActivityWindowDays bounds the histogram window a caller may request.
const MaxActivityWindowDays = 365

// ActivityHistogram reports per-day completion counts for the trailing window
// ending today, oldest first. Every day in the window is present even when
// its count is zero. The window is clamped to MaxActivityWindowDays.
func (ag *Aggregator) ActivityHistogram(studentID uint, windowDays int) ([]ActivityDay, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	if windowDays > MaxActivityWindowDays {
		windowDays = MaxActivityWindowDays
	}

	counts, err := ag.completionCounts(studentID)
	if err != nil {
		return nil, err
	}

	today := truncateToDay(ag.Now().UTC())
	histogram := make([]ActivityDay, windowDays)
	for i := 0; i < windowDays; i++ {
		day := today.AddDate(0, 0, i-windowDays+1)
		histogram[i] = ActivityDay{
			Date:  day.Format("2006-01-02"),
			Count: counts[day],
		}
	}
	return histogram, nil
}

// DailyLessons returns the student's scheduled lessons for one calendar day,
// joined with their progress records and sorted by lesson order.
func (ag *Aggregator) DailyLessons(studentID uint, date time.Time) ([]ScheduledLesson, error) {
	day := truncateToDay(date.UTC())
	return ag.scheduledLessons(studentID, day, day.AddDate(0, 0, 1))
}

// MonthCalendar groups the student's scheduled lessons for one month by day,
// days in ascending order. Days without scheduled lessons are omitted.
func (ag *Aggregator) MonthCalendar(studentID uint, year int, month time.Month) ([]CalendarDay, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lessons, err := ag.scheduledLessons(studentID, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	var calendar []CalendarDay
	for _, lesson := range lessons {
		day := truncateToDay(lesson.Lesson.ScheduledDate.UTC()).Format("2006-01-02")
		if len(calendar) == 0 || calendar[len(calendar)-1].Date != day {
			calendar = append(calendar, CalendarDay{Date: day})
		}
		calendar[len(calendar)-1].Lessons = append(calendar[len(calendar)-1].Lessons, lesson)
	}
	return calendar, nil
}

// scheduledLessons returns the student's enrolled lessons scheduled inside
// [from, to). The lesson set comes from the enrollments, not from progress
// rows, so a lesson whose progress initialization was skipped still shows up
// as not started.
func (ag *Aggregator) scheduledLessons(studentID uint, from, to time.Time) ([]ScheduledLesson, error) {
	ids, err := ag.enrolledLessonIDs(studentID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []ScheduledLesson{}, nil
	}

	var lessons []models.Lesson
	err = ag.DB.Where("id IN ?", ids).
		Where("scheduled_date >= ? AND scheduled_date < ?", from, to).
		Order("scheduled_date, lesson_order").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}

	result := make([]ScheduledLesson, 0, len(lessons))
	for _, lesson := range lessons {
		// A missing progress record reads as not started.
		var progress models.ProgressRecord
		if err := ag.DB.Where("student_id = ? AND lesson_id = ?",
			studentID, lesson.ID).First(&progress).Error; err != nil {
			progress = models.ProgressRecord{StudentID: studentID, LessonID: lesson.ID}
		}
		result = append(result, ScheduledLesson{
			Lesson:   lesson,
			Progress: progress,
			Segments: CountSegments(lesson.LessonScript),
		})
	}
	return result, nil
}

// enrolledLessonIDs collects the distinct descendant lesson ids across all of
// the student's enrollments.
func (ag *Aggregator) enrolledLessonIDs(studentID uint) ([]uint, error) {
	var enrollments []models.EnrollmentRecord
	if err := ag.DB.Where("student_id = ?", studentID).Find(&enrollments).Error; err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{})
	ids := make([]uint, 0)
	for _, enrollment := range enrollments {
		lessons, err := ag.Catalog.UnitLessons(catalog.UnitRef{Kind: enrollment.UnitKind, ID: enrollment.UnitID})
		if err != nil {
			return nil, err
		}
		for _, lesson := range lessons {
			if _, dup := seen[lesson.ID]; dup {
				continue
			}
			seen[lesson.ID] = struct{}{}
			ids = append(ids, lesson.ID)
		}
	}
	return ids, nil
}

func (ag *Aggregator) completionDays(studentID uint) (map[time.Time]bool, error) {
	counts, err := ag.completionCounts(studentID)
	if err != nil {
		return nil, err
	}
	days := make(map[time.Time]bool, len(counts))
	for day := range counts {
		days[day] = true
	}
	return days, nil
}

func (ag *Aggregator) completionCounts(studentID uint) (map[time.Time]int, error) {
	var records []models.ProgressRecord
	err := ag.DB.Where("student_id = ? AND completed = ? AND completed_at IS NOT NULL",
		studentID, true).Find(&records).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[time.Time]int)
	for _, record := range records {
		counts[truncateToDay(record.CompletedAt.UTC())]++
	}
	return counts, nil
}

// unitCompletion counts completed vs total descendant lessons. Duplicate
// lessons (a course reachable twice within one path) count once.
func unitCompletion(db *gorm.DB, ct *catalog.Catalog, studentID uint, ref catalog.UnitRef) (int, int, error) {
	lessons, err := ct.UnitLessons(ref)
	if err != nil {
		return 0, 0, err
	}

	seen := make(map[uint]struct{}, len(lessons))
	ids := make([]uint, 0, len(lessons))
	for _, lesson := range lessons {
		if _, dup := seen[lesson.ID]; dup {
			continue
		}
		seen[lesson.ID] = struct{}{}
		ids = append(ids, lesson.ID)
	}
	if len(ids) == 0 {
		return 0, 0, nil
	}

	var completed int64
	err = db.Model(&models.ProgressRecord{}).
		Where("student_id = ? AND completed = ? AND lesson_id IN ?", studentID, true, ids).
		Count(&completed).Error
	if err != nil {
		return 0, 0, err
	}
	return int(completed), len(ids), nil
}

func roundPercent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
