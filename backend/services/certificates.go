package services

import (
	"errors"
	"log"
	"time"

	"stoa/backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Certificates mints one certificate per completed certification enrollment.
// The id is generated on first issue and returned unchanged afterwards.
type Certificates struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewCertificates(db *gorm.DB, logger *log.Logger) *Certificates {
	return &Certificates{DB: db, Logger: logger}
}

// Issue returns the student's certificate for the certification, creating it
// if the enrollment is completed and none exists yet. Repeat requests reuse
// the minted id; concurrent first requests converge on one row through the
// (student, certification) conflict target.
func (cs *Certificates) Issue(studentID, certificationID uint) (*models.Certificate, error) {
	var enrollment models.EnrollmentRecord
	err := cs.DB.Where("student_id = ? AND unit_kind = ? AND unit_id = ?",
		studentID, models.UnitKindCertification, certificationID).First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, err
	}
	if enrollment.CompletedAt == nil {
		return nil, ErrNotCompleted
	}

	certificate := models.Certificate{
		ID:              uuid.NewString(),
		StudentID:       studentID,
		CertificationID: certificationID,
		IssueDate:       time.Now().UTC(),
	}
	if err := cs.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "certification_id"}},
		DoNothing: true,
	}).Create(&certificate).Error; err != nil {
		return nil, err
	}

	var stored models.Certificate
	if err := cs.DB.Where("student_id = ? AND certification_id = ?",
		studentID, certificationID).First(&stored).Error; err != nil {
		return nil, err
	}

	if enrollment.CertificateID == nil || *enrollment.CertificateID != stored.ID {
		err := cs.DB.Model(&models.EnrollmentRecord{}).
			Where("id = ?", enrollment.ID).
			Update("certificate_id", stored.ID).Error
		if err != nil {
			cs.Logger.Printf("certificates: enrollment link failed for student %d certification %d: %v",
				studentID, certificationID, err)
		}
	}

	return &stored, nil
}
