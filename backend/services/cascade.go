package services

import (
	"errors"
	"log"
	"time"

	"stoa/backend/catalog"
	"stoa/backend/models"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CascadeOutcome records the result of one descendant write during fan-out.
type CascadeOutcome struct {
	LessonID uint
	Err      error
}

// Cascade fans an enrollment out across a unit's subtree: one enrollment
// record per unit, one unstarted progress record per descendant lesson.
// Descendant writes are best-effort; only the top-level enrollment can fail.
type Cascade struct {
	DB      *gorm.DB
	Catalog *catalog.Catalog
	Logger  *log.Logger
	Workers int
}

func NewCascade(db *gorm.DB, ct *catalog.Catalog, logger *log.Logger, workers int) *Cascade {
	if workers < 1 {
		workers = 1
	}
	return &Cascade{DB: db, Catalog: ct, Logger: logger, Workers: workers}
}

// Enroll enrolls the student in the referenced unit and initializes progress
// tracking for every descendant lesson. Enrolling twice is idempotent: the
// existing record is returned with its original timestamp. A missing unit is
// the only fatal error besides storage failures on the top-level write.
func (cs *Cascade) Enroll(studentID uint, ref catalog.UnitRef) (*models.EnrollmentRecord, error) {
	exists, err := cs.Catalog.UnitExists(ref)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownKind) {
			return nil, ErrUnitNotFound
		}
		return nil, err
	}
	if !exists {
		return nil, ErrUnitNotFound
	}

	record, err := cs.upsertEnrollment(studentID, ref)
	if err != nil {
		return nil, err
	}

	lessons := cs.collectDescendants(studentID, ref)
	for _, outcome := range cs.initProgress(studentID, lessons) {
		if outcome.Err != nil {
			cs.Logger.Printf("cascade: progress init failed for student %d lesson %d: %v",
				studentID, outcome.LessonID, outcome.Err)
		}
	}

	return record, nil
}

// upsertEnrollment inserts the enrollment if absent and returns the stored
// row either way. The conflict target is the (student, unit) natural key, so
// concurrent calls converge on a single record.
func (cs *Cascade) upsertEnrollment(studentID uint, ref catalog.UnitRef) (*models.EnrollmentRecord, error) {
	record := models.EnrollmentRecord{
		StudentID:  studentID,
		UnitKind:   ref.Kind,
		UnitID:     ref.ID,
		EnrolledAt: time.Now().UTC(),
	}
	if err := cs.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "unit_kind"}, {Name: "unit_id"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return nil, err
	}

	var stored models.EnrollmentRecord
	if err := cs.DB.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
		studentID, ref.Kind, ref.ID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// collectDescendants resolves every lesson under the unit. For learning paths
// it also creates the member-course enrollment records along the way. All
// failures here are logged and skipped; a partially resolved subtree still
// gets its progress records.
func (cs *Cascade) collectDescendants(studentID uint, ref catalog.UnitRef) []models.Lesson {
	if ref.Kind != models.UnitKindPath {
		lessons, err := cs.Catalog.UnitLessons(ref)
		if err != nil {
			cs.Logger.Printf("cascade: lesson resolution failed for %s %d: %v", ref.Kind, ref.ID, err)
			return nil
		}
		return lessons
	}

	courses, err := cs.Catalog.PathCourses(ref.ID)
	if err != nil {
		cs.Logger.Printf("cascade: course resolution failed for path %d: %v", ref.ID, err)
		return nil
	}

	var lessons []models.Lesson
	for _, course := range courses {
		courseRef := catalog.UnitRef{Kind: models.UnitKindCourse, ID: course.ID}
		if _, err := cs.upsertEnrollment(studentID, courseRef); err != nil {
			cs.Logger.Printf("cascade: course enrollment failed for student %d course %d: %v",
				studentID, course.ID, err)
		}
		courseLessons, err := cs.Catalog.UnitLessons(courseRef)
		if err != nil {
			cs.Logger.Printf("cascade: lesson resolution failed for course %d: %v", course.ID, err)
			continue
		}
		lessons = append(lessons, courseLessons...)
	}
	return lessons
}

// initProgress upserts an unstarted progress record for every lesson with
// bounded parallelism. Existing rows are left untouched so re-enrollment
// never resets completed work. Each goroutine writes only its own outcome
// slot and always returns nil; failures stay isolated per lesson.
func (cs *Cascade) initProgress(studentID uint, lessons []models.Lesson) []CascadeOutcome {
	outcomes := make([]CascadeOutcome, len(lessons))

	group := new(errgroup.Group)
	group.SetLimit(cs.Workers)
	for i, lesson := range lessons {
		i, lesson := i, lesson
		group.Go(func() error {
			record := models.ProgressRecord{
				StudentID: studentID,
				LessonID:  lesson.ID,
			}
			err := cs.DB.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "student_id"}, {Name: "lesson_id"}},
				DoNothing: true,
			}).Create(&record).Error
			outcomes[i] = CascadeOutcome{LessonID: lesson.ID, Err: err}
			return nil
		})
	}
	group.Wait()

	return outcomes
}
