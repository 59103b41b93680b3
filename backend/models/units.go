package models

import (
	"time"

	"gorm.io/gorm"
)

// Unit kinds accepted by enrollment and catalog lookups.
const (
	UnitKindCourse        = "course"
	UnitKindCertification = "certification"
	UnitKindPath          = "path"
)

type Course struct {
	gorm.Model
	Title       string
	ShortDesc   string
	Description string
	Difficulty  string // beginner, intermediate, advanced
	Topic       string
	AuthorID    uint
	LogoURL     string
}

type Certification struct {
	gorm.Model
	Title       string
	ShortDesc   string
	Description string
	Topic       string
	AuthorID    uint
	LogoURL     string
}

type LearningPath struct {
	gorm.Model
	Title       string
	Description string
	StudentID   uint // owner of a personal path, 0 for shared paths
}

// PathCourse links a learning path to a member course; UnitOrder sorts the
// course list within the path.
type PathCourse struct {
	gorm.Model
	PathID    uint `gorm:"index"`
	CourseID  uint
	UnitOrder int
}

// Module belongs to exactly one course or certification, identified by
// (UnitKind, UnitID).
type Module struct {
	gorm.Model
	UnitKind    string `gorm:"index:idx_module_unit"`
	UnitID      uint   `gorm:"index:idx_module_unit"`
	Title       string
	ModuleOrder int
}

type Lesson struct {
	gorm.Model
	ModuleID      uint `gorm:"index"`
	Title         string
	LessonOrder   int
	Duration      float64 // hours
	LessonScript  string  // markdown-like text, "## " headings delimit segments
	ScheduledDate *time.Time
}
