package services

import (
	"errors"
	"log"
	"time"

	"stoa/backend/catalog"
	"stoa/backend/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PassScore is the quiz score at which a lesson counts as completed.
const PassScore = 70

// Gate applies completion rules to lessons: quiz submissions gate completion
// on the pass score, manual toggles write through directly. All progress
// writes go through natural-key upserts.
type Gate struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog
	Logger  *log.Logger
}

func NewGate(db *gorm.DB, ct *catalog.Catalog, logger *log.Logger) *Gate {
	return &Gate{DB: db, Catalog: ct, Logger: logger}
}

// SubmitQuiz records a quiz attempt and, on a passing score, marks the lesson
// completed with the resume index at the end of the script. The attempt row is
// last-write-wins per (student, lesson, quiz). A failing score never touches
// the progress record, so an earlier completion survives a later failed quiz.
func (g *Gate) SubmitQuiz(studentID, lessonID, quizID uint, answers datatypes.JSON, score int) (*models.QuizAttempt, error) {
	lesson, ownerRef, err := g.Catalog.LessonOwner(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	if err := g.requireEnrollment(studentID, ownerRef); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	attempt := models.QuizAttempt{
		StudentID:   studentID,
		LessonID:    lessonID,
		QuizID:      quizID,
		Answers:     answers,
		Score:       score,
		CompletedAt: now,
	}
	if err := g.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}, {Name: "quiz_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"answers", "score", "completed_at", "updated_at"}),
	}).Create(&attempt).Error; err != nil {
		return nil, err
	}

	if score >= PassScore {
		done, err := g.lessonCompleted(studentID, lessonID)
		if err != nil {
			return nil, err
		}
		// Re-passing an already-completed lesson keeps the original
		// completion timestamp.
		if !done {
			total := CountSegments(lesson.LessonScript)
			if err := g.upsertProgress(studentID, lessonID, map[string]interface{}{
				"completed":                    true,
				"completed_at":                 now,
				"last_completed_segment_index": total,
			}); err != nil {
				return nil, err
			}
			g.refreshEnrollment(studentID, ownerRef)
		}
	}

	var stored models.QuizAttempt
	if err := g.DB.Where("student_id = ? AND lesson_id = ? AND quiz_id = ?",
		studentID, lessonID, quizID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// ManualComplete sets a lesson's completion flag directly. Completing without
// an explicit segment index resumes at the end of the script, using the same
// count the quiz path uses. Un-completing clears the completion timestamp but
// keeps the resume index unless a new one is given.
func (g *Gate) ManualComplete(studentID, lessonID uint, completed bool, segmentIndex *int) (*models.ProgressRecord, error) {
	lesson, ownerRef, err := g.Catalog.LessonOwner(lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	if err := g.requireEnrollment(studentID, ownerRef); err != nil {
		if errors.Is(err, ErrNotEnrolled) {
			return nil, ErrNotOwned
		}
		return nil, err
	}

	now := time.Now().UTC()
	assignments := map[string]interface{}{
		"completed":  completed,
		"updated_at": now,
	}
	record := models.ProgressRecord{
		StudentID: studentID,
		LessonID:  lessonID,
		Completed: completed,
	}
	if completed {
		index := CountSegments(lesson.LessonScript)
		if segmentIndex != nil {
			index = *segmentIndex
		}
		record.LastCompletedSegmentIndex = index
		record.CompletedAt = &now
		assignments["last_completed_segment_index"] = index

		done, err := g.lessonCompleted(studentID, lessonID)
		if err != nil {
			return nil, err
		}
		// Re-completing keeps the original completion timestamp.
		if !done {
			assignments["completed_at"] = now
		}
	} else {
		assignments["completed_at"] = nil
		if segmentIndex != nil {
			record.LastCompletedSegmentIndex = *segmentIndex
			assignments["last_completed_segment_index"] = *segmentIndex
		}
	}

	if err := g.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&record).Error; err != nil {
		return nil, err
	}

	g.refreshEnrollment(studentID, ownerRef)

	var stored models.ProgressRecord
	if err := g.DB.Where("student_id = ? AND lesson_id = ?",
		studentID, lessonID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// lessonCompleted reports whether the student already completed the lesson. A
// missing progress record counts as not completed.
func (g *Gate) lessonCompleted(studentID, lessonID uint) (bool, error) {
	var record models.ProgressRecord
	err := g.DB.Where("student_id = ? AND lesson_id = ?", studentID, lessonID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Completed, nil
}

func (g *Gate) requireEnrollment(studentID uint, ref catalog.UnitRef) error {
	var enrollment models.EnrollmentRecord
	err := g.DB.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
		studentID, ref.Kind, ref.ID).First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotEnrolled
	}
	return err
}

// upsertProgress writes completion state through the (student, lesson)
// natural key. Unlike cascade initialization this always overwrites.
func (g *Gate) upsertProgress(studentID, lessonID uint, assignments map[string]interface{}) error {
	record := models.ProgressRecord{
		StudentID: studentID,
		LessonID:  lessonID,
	}
	if completed, ok := assignments["completed"].(bool); ok {
		record.Completed = completed
	}
	if index, ok := assignments["last_completed_segment_index"].(int); ok {
		record.LastCompletedSegmentIndex = index
	}
	if completedAt, ok := assignments["completed_at"].(time.Time); ok {
		record.CompletedAt = &completedAt
	}
	return g.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&record).Error
}

// refreshEnrollment recomputes the advisory progress cache on the owning
// unit's enrollment and stamps completed_at once everything is done. Readers
// never depend on this column; failures are logged and dropped.
func (g *Gate) refreshEnrollment(studentID uint, ref catalog.UnitRef) {
	completed, total, err := unitCompletion(g.DB, g.Catalog, studentID, ref)
	if err != nil {
		g.Logger.Printf("gate: progress refresh failed for student %d %s %d: %v",
			studentID, ref.Kind, ref.ID, err)
		return
	}

	percent := roundPercent(completed, total)
	updates := map[string]interface{}{"progress": percent}
	if percent == 100 && total > 0 {
		var enrollment models.EnrollmentRecord
		err := g.DB.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
			studentID, ref.Kind, ref.ID).First(&enrollment).Error
		if err == nil && enrollment.CompletedAt == nil {
			updates["completed_at"] = time.Now().UTC()
		}
	}

	err = g.DB.Model(&models.EnrollmentRecord{}).
		Where("student_id = ? AND unit_kind = ? AND unit_id = ?", studentID, ref.Kind, ref.ID).
		Updates(updates).Error
	if err != nil {
		g.Logger.Printf("gate: enrollment cache update failed for student %d %s %d: %v",
			studentID, ref.Kind, ref.ID, err)
	}
}
