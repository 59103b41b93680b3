package services

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"stoa/backend/catalog"
	"stoa/backend/database"
	"stoa/backend/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// createCourse seeds a course with a single module and one lesson per script.
func createCourse(t *testing.T, db *gorm.DB, title string, scripts ...string) (models.Course, []models.Lesson) {
	t.Helper()

	course := models.Course{Title: title}
	require.NoError(t, db.Create(&course).Error)

	module := models.Module{
		UnitKind:    models.UnitKindCourse,
		UnitID:      course.ID,
		Title:       title + " module",
		ModuleOrder: 1,
	}
	require.NoError(t, db.Create(&module).Error)

	lessons := make([]models.Lesson, 0, len(scripts))
	for i, script := range scripts {
		lesson := models.Lesson{
			ModuleID:     module.ID,
			Title:        fmt.Sprintf("%s lesson %d", title, i+1),
			LessonOrder:  i + 1,
			LessonScript: script,
		}
		require.NoError(t, db.Create(&lesson).Error)
		lessons = append(lessons, lesson)
	}
	return course, lessons
}

func createPath(t *testing.T, db *gorm.DB, title string, courseIDs ...uint) models.LearningPath {
	t.Helper()

	path := models.LearningPath{Title: title}
	require.NoError(t, db.Create(&path).Error)
	for i, courseID := range courseIDs {
		link := models.PathCourse{PathID: path.ID, CourseID: courseID, UnitOrder: i + 1}
		require.NoError(t, db.Create(&link).Error)
	}
	return path
}

func newCascade(db *gorm.DB) *Cascade {
	return NewCascade(db, catalog.NewCatalog(db), testLogger(), 1)
}
