package services

import (
	"testing"
	"time"

	"stoa/backend/catalog"
	"stoa/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newGate(db *Cascade) *Gate {
	return NewGate(db.DB, db.Catalog, testLogger())
}

func enrollInCourse(t *testing.T, cascade *Cascade, studentID uint, courseID uint) {
	t.Helper()
	_, err := cascade.Enroll(studentID, catalog.UnitRef{Kind: models.UnitKindCourse, ID: courseID})
	require.NoError(t, err)
}

func TestSubmitQuizGating(t *testing.T) {
	db := newTestDB(t)
	// Three segments: preamble plus two headings.
	course, lessons := createCourse(t, db, "Rhetoric", "intro\n## A\nx\n## B\ny")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 1, course.ID)

	answers := datatypes.JSON([]byte(`{"q1":"a"}`))

	// Below the pass score nothing moves.
	_, err := gate.SubmitQuiz(1, lessons[0].ID, 10, answers, 69)
	require.NoError(t, err)

	var progress models.ProgressRecord
	require.NoError(t, db.Where("student_id = ? AND lesson_id = ?", 1, lessons[0].ID).
		First(&progress).Error)
	assert.False(t, progress.Completed)
	assert.Nil(t, progress.CompletedAt)
	assert.Equal(t, 0, progress.LastCompletedSegmentIndex)

	// At the pass score the lesson completes at the end of the script.
	_, err = gate.SubmitQuiz(1, lessons[0].ID, 10, answers, 70)
	require.NoError(t, err)

	require.NoError(t, db.Where("student_id = ? AND lesson_id = ?", 1, lessons[0].ID).
		First(&progress).Error)
	assert.True(t, progress.Completed)
	assert.NotNil(t, progress.CompletedAt)
	assert.Equal(t, 3, progress.LastCompletedSegmentIndex)
}

func TestSubmitQuizLastWriteWins(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Logic", "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 2, course.ID)

	_, err := gate.SubmitQuiz(2, lessons[0].ID, 4, datatypes.JSON([]byte(`{"q1":"a"}`)), 40)
	require.NoError(t, err)
	attempt, err := gate.SubmitQuiz(2, lessons[0].ID, 4, datatypes.JSON([]byte(`{"q1":"b"}`)), 90)
	require.NoError(t, err)
	assert.Equal(t, 90, attempt.Score)

	var count int64
	db.Model(&models.QuizAttempt{}).
		Where("student_id = ? AND lesson_id = ? AND quiz_id = ?", 2, lessons[0].ID, 4).
		Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestFailedQuizNeverUncompletes(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Logic", "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 3, course.ID)

	_, err := gate.SubmitQuiz(3, lessons[0].ID, 1, nil, 100)
	require.NoError(t, err)
	_, err = gate.SubmitQuiz(3, lessons[0].ID, 1, nil, 10)
	require.NoError(t, err)

	var progress models.ProgressRecord
	require.NoError(t, db.Where("student_id = ? AND lesson_id = ?", 3, lessons[0].ID).
		First(&progress).Error)
	assert.True(t, progress.Completed)
}

func TestSubmitQuizPreconditions(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Logic", "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)

	_, err := gate.SubmitQuiz(9, 999, 1, nil, 80)
	assert.ErrorIs(t, err, ErrLessonNotFound)

	// Enrolled student required; the course exists but student 9 never enrolled.
	_, err = gate.SubmitQuiz(9, lessons[0].ID, 1, nil, 80)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	enrollInCourse(t, cascade, 9, course.ID)
	_, err = gate.SubmitQuiz(9, lessons[0].ID, 1, nil, 80)
	assert.NoError(t, err)
}

func TestManualComplete(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Physics", "intro\n## A\nx")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 4, course.ID)

	// Completing without an index resumes at the end of the script.
	record, err := gate.ManualComplete(4, lessons[0].ID, true, nil)
	require.NoError(t, err)
	assert.True(t, record.Completed)
	assert.Equal(t, 2, record.LastCompletedSegmentIndex)
	require.NotNil(t, record.CompletedAt)

	// Un-completing clears the timestamp but keeps the resume index.
	record, err = gate.ManualComplete(4, lessons[0].ID, false, nil)
	require.NoError(t, err)
	assert.False(t, record.Completed)
	assert.Nil(t, record.CompletedAt)
	assert.Equal(t, 2, record.LastCompletedSegmentIndex)

	// An explicit index wins over the computed one.
	index := 1
	record, err = gate.ManualComplete(4, lessons[0].ID, true, &index)
	require.NoError(t, err)
	assert.True(t, record.Completed)
	assert.Equal(t, 1, record.LastCompletedSegmentIndex)
}

func TestRepeatedPassKeepsCompletionTimestamp(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Logic", "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 5, course.ID)

	_, err := gate.SubmitQuiz(5, lessons[0].ID, 1, nil, 90)
	require.NoError(t, err)

	var first models.ProgressRecord
	require.NoError(t, db.Where("student_id = ? AND lesson_id = ?", 5, lessons[0].ID).
		First(&first).Error)
	require.NotNil(t, first.CompletedAt)

	// Backdate the stored timestamp so an overwrite would be visible.
	earlier := first.CompletedAt.Add(-time.Hour)
	require.NoError(t, db.Model(&models.ProgressRecord{}).Where("id = ?", first.ID).
		Update("completed_at", earlier).Error)

	_, err = gate.SubmitQuiz(5, lessons[0].ID, 1, nil, 95)
	require.NoError(t, err)

	var second models.ProgressRecord
	require.NoError(t, db.Where("student_id = ? AND lesson_id = ?", 5, lessons[0].ID).
		First(&second).Error)
	require.NotNil(t, second.CompletedAt)
	assert.Equal(t, earlier.Unix(), second.CompletedAt.Unix())
}

func TestRepeatedManualCompleteKeepsCompletionTimestamp(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Logic", "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 7, course.ID)

	record, err := gate.ManualComplete(7, lessons[0].ID, true, nil)
	require.NoError(t, err)
	require.NotNil(t, record.CompletedAt)

	earlier := record.CompletedAt.Add(-time.Hour)
	require.NoError(t, db.Model(&models.ProgressRecord{}).Where("id = ?", record.ID).
		Update("completed_at", earlier).Error)

	record, err = gate.ManualComplete(7, lessons[0].ID, true, nil)
	require.NoError(t, err)
	require.NotNil(t, record.CompletedAt)
	assert.Equal(t, earlier.Unix(), record.CompletedAt.Unix())
	assert.True(t, record.Completed)
}

func TestManualCompleteRequiresOwnership(t *testing.T) {
	db := newTestDB(t)
	_, lessons := createCourse(t, db, "Logic", "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)

	_, err := gate.ManualComplete(8, lessons[0].ID, true, nil)
	assert.ErrorIs(t, err, ErrNotOwned)

	_, err = gate.ManualComplete(8, 999, true, nil)
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestEnrollmentCacheRefresh(t *testing.T) {
	db := newTestDB(t)
	course, lessons := createCourse(t, db, "Logic", "## A", "## B")
	cascade := newCascade(db)
	gate := newGate(cascade)
	enrollInCourse(t, cascade, 6, course.ID)

	_, err := gate.ManualComplete(6, lessons[0].ID, true, nil)
	require.NoError(t, err)

	var enrollment models.EnrollmentRecord
	require.NoError(t, db.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
		6, models.UnitKindCourse, course.ID).First(&enrollment).Error)
	assert.Equal(t, 50, enrollment.Progress)
	assert.Nil(t, enrollment.CompletedAt)

	_, err = gate.ManualComplete(6, lessons[1].ID, true, nil)
	require.NoError(t, err)

	require.NoError(t, db.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
		6, models.UnitKindCourse, course.ID).First(&enrollment).Error)
	assert.Equal(t, 100, enrollment.Progress)
	assert.NotNil(t, enrollment.CompletedAt)
}
