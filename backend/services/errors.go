package services

import "errors"

// Fatal outcomes surfaced to callers. Per-descendant cascade failures are
// never wrapped in these; they are logged and swallowed.
var (
	ErrUnitNotFound   = errors.New("unit not found")
	ErrLessonNotFound = errors.New("lesson not found")
	ErrNotEnrolled    = errors.New("student is not enrolled in this unit")
	ErrNotOwned       = errors.New("progress record is not owned by this student")
	ErrNotCompleted   = errors.New("certification is not completed")
)
