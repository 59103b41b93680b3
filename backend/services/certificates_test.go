package services

import (
	"testing"

	"stoa/backend/catalog"
	"stoa/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createCertification(t *testing.T, db *gorm.DB, scripts ...string) (models.Certification, []models.Lesson) {
	t.Helper()

	certification := models.Certification{Title: "Cert"}
	require.NoError(t, db.Create(&certification).Error)
	module := models.Module{UnitKind: models.UnitKindCertification, UnitID: certification.ID, ModuleOrder: 1}
	require.NoError(t, db.Create(&module).Error)

	lessons := make([]models.Lesson, 0, len(scripts))
	for i, script := range scripts {
		lesson := models.Lesson{ModuleID: module.ID, LessonOrder: i + 1, LessonScript: script}
		require.NoError(t, db.Create(&lesson).Error)
		lessons = append(lessons, lesson)
	}
	return certification, lessons
}

func TestIssueCertificate(t *testing.T) {
	db := newTestDB(t)
	certification, lessons := createCertification(t, db, "## A")
	cascade := newCascade(db)
	gate := newGate(cascade)
	certificates := NewCertificates(db, testLogger())

	// Not enrolled yet.
	_, err := certificates.Issue(1, certification.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)

	_, err = cascade.Enroll(1, catalog.UnitRef{Kind: models.UnitKindCertification, ID: certification.ID})
	require.NoError(t, err)

	// Enrolled but not completed.
	_, err = certificates.Issue(1, certification.ID)
	assert.ErrorIs(t, err, ErrNotCompleted)

	_, err = gate.ManualComplete(1, lessons[0].ID, true, nil)
	require.NoError(t, err)

	certificate, err := certificates.Issue(1, certification.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, certificate.ID)

	// Repeat requests reuse the minted id.
	again, err := certificates.Issue(1, certification.ID)
	require.NoError(t, err)
	assert.Equal(t, certificate.ID, again.ID)

	var count int64
	db.Model(&models.Certificate{}).
		Where("student_id = ? AND certification_id = ?", 1, certification.ID).
		Count(&count)
	assert.Equal(t, int64(1), count)

	var enrollment models.EnrollmentRecord
	require.NoError(t, db.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
		1, models.UnitKindCertification, certification.ID).First(&enrollment).Error)
	require.NotNil(t, enrollment.CertificateID)
	assert.Equal(t, certificate.ID, *enrollment.CertificateID)
}
