package catalog

import (
	"errors"

	"stoa/backend/models"

	"gorm.io/gorm"
)

// ErrUnknownKind is returned for unit kinds outside course/certification/path.
var ErrUnknownKind = errors.New("unknown unit kind")

// UnitRef identifies an enrollable unit: a course, a certification or a
// learning path.
type UnitRef struct {
	Kind string
	ID   uint
}

// Catalog resolves units to their descendant modules and lessons. It is
// read-only: authoring lives outside this service.
type Catalog struct {
	DB *gorm.DB
}

func NewCatalog(db *gorm.DB) *Catalog {
	return &Catalog{DB: db}
}

// UnitExists reports whether the referenced unit is present in the catalog.
func (ct *Catalog) UnitExists(ref UnitRef) (bool, error) {
	var err error
	switch ref.Kind {
	case models.UnitKindCourse:
		err = ct.DB.First(&models.Course{}, ref.ID).Error
	case models.UnitKindCertification:
		err = ct.DB.First(&models.Certification{}, ref.ID).Error
	case models.UnitKindPath:
		err = ct.DB.First(&models.LearningPath{}, ref.ID).Error
	default:
		return false, ErrUnknownKind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UnitLessons returns every descendant lesson of the unit in module order,
// then lesson order. Path units aggregate across member courses in unit order.
func (ct *Catalog) UnitLessons(ref UnitRef) ([]models.Lesson, error) {
	switch ref.Kind {
	case models.UnitKindCourse, models.UnitKindCertification:
		return ct.unitModuleLessons(ref.Kind, ref.ID)
	case models.UnitKindPath:
		courses, err := ct.PathCourses(ref.ID)
		if err != nil {
			return nil, err
		}
		var lessons []models.Lesson
		for _, course := range courses {
			courseLessons, err := ct.unitModuleLessons(models.UnitKindCourse, course.ID)
			if err != nil {
				return nil, err
			}
			lessons = append(lessons, courseLessons...)
		}
		return lessons, nil
	default:
		return nil, ErrUnknownKind
	}
}

// PathCourses returns a path's member courses sorted by unit order.
func (ct *Catalog) PathCourses(pathID uint) ([]models.Course, error) {
	var links []models.PathCourse
	if err := ct.DB.Where("path_id = ?", pathID).
		Order("unit_order").Find(&links).Error; err != nil {
		return nil, err
	}

	var courses []models.Course
	for _, link := range links {
		var course models.Course
		if err := ct.DB.First(&course, link.CourseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// LessonOwner resolves a lesson and the unit that directly owns it (the
// course or certification of its module).
func (ct *Catalog) LessonOwner(lessonID uint) (models.Lesson, UnitRef, error) {
	var lesson models.Lesson
	if err := ct.DB.First(&lesson, lessonID).Error; err != nil {
		return models.Lesson{}, UnitRef{}, err
	}

	var module models.Module
	if err := ct.DB.First(&module, lesson.ModuleID).Error; err != nil {
		return models.Lesson{}, UnitRef{}, err
	}

	return lesson, UnitRef{Kind: module.UnitKind, ID: module.UnitID}, nil
}

func (ct *Catalog) unitModuleLessons(kind string, unitID uint) ([]models.Lesson, error) {
	var modules []models.Module
	if err := ct.DB.Where("unit_kind = ? AND unit_id = ?", kind, unitID).
		Order("module_order").Find(&modules).Error; err != nil {
		return nil, err
	}

	var lessons []models.Lesson
	for _, module := range modules {
		var moduleLessons []models.Lesson
		if err := ct.DB.Where("module_id = ?", module.ID).
			Order("lesson_order").Find(&moduleLessons).Error; err != nil {
			return nil, err
		}
		lessons = append(lessons, moduleLessons...)
	}
	return lessons, nil
}
