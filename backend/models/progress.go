package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnrollmentRecord ties a student to an enrollable unit. The Progress column
// is an advisory cache; live numbers always come from progress records.
type EnrollmentRecord struct {
	gorm.Model
	StudentID     uint   `gorm:"uniqueIndex:idx_student_unit"`
	UnitKind      string `gorm:"uniqueIndex:idx_student_unit"`
	UnitID        uint   `gorm:"uniqueIndex:idx_student_unit"`
	EnrolledAt    time.Time
	Progress      int `gorm:"default:0"`
	CompletedAt   *time.Time
	CertificateID *string
}

// ProgressRecord tracks one student's state on one lesson. Created unstarted
// by the enrollment cascade, updated in place afterwards.
type ProgressRecord struct {
	gorm.Model
	StudentID                 uint `gorm:"uniqueIndex:idx_student_lesson"`
	LessonID                  uint `gorm:"uniqueIndex:idx_student_lesson"`
	Completed                 bool `gorm:"default:false"`
	CompletedAt               *time.Time
	LastCompletedSegmentIndex int `gorm:"default:0"`
}

// QuizAttempt keeps the latest submission per (student, lesson, quiz);
// resubmissions overwrite answers, score and timestamp.
type QuizAttempt struct {
	gorm.Model
	StudentID   uint `gorm:"uniqueIndex:idx_student_lesson_quiz"`
	LessonID    uint `gorm:"uniqueIndex:idx_student_lesson_quiz"`
	QuizID      uint `gorm:"uniqueIndex:idx_student_lesson_quiz"`
	Answers     datatypes.JSON
	Score       int
	CompletedAt time.Time
}

type Certificate struct {
	ID              string `gorm:"primarykey"`
	StudentID       uint   `gorm:"uniqueIndex:idx_student_certification"`
	CertificationID uint   `gorm:"uniqueIndex:idx_student_certification"`
	IssueDate       time.Time
}
