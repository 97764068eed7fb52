package models

import (
	"strings"
	"time"

	"github.com/noah-isme/course-scheduler/pkg/timeofday"
)

// Semester labels an academic term within a school year.
type Semester string

const (
	SemesterFirst  Semester = "1st"
	SemesterSecond Semester = "2nd"
	SemesterSummer Semester = "Summer"
)

// Valid reports whether the semester is one of the known labels.
func (s Semester) Valid() bool {
	switch s {
	case SemesterFirst, SemesterSecond, SemesterSummer:
		return true
	}
	return false
}

// ScheduleStatus is the soft lifecycle state of a schedule row.
type ScheduleStatus string

const (
	ScheduleStatusActive   ScheduleStatus = "active"
	ScheduleStatusInactive ScheduleStatus = "inactive"
)

// Schedule is one weekly meeting of a subject section.
type Schedule struct {
	ID                  string          `db:"id" json:"id"`
	SubjectID           string          `db:"subject_id" json:"subject_id"`
	CurriculumSubjectID *string         `db:"curriculum_subject_id" json:"curriculum_subject_id,omitempty"`
	RoomID              string          `db:"room_id" json:"room_id"`
	FacultyID           *string         `db:"faculty_id" json:"faculty_id,omitempty"`
	AcademicYearID      string          `db:"academic_year_id" json:"academic_year_id"`
	Semester            Semester        `db:"semester" json:"semester"`
	Section             string          `db:"section" json:"section"`
	DayPattern          string          `db:"day_pattern" json:"day_pattern"`
	StartTime           timeofday.Clock `db:"start_time" json:"start_time"`
	EndTime             timeofday.Clock `db:"end_time" json:"end_time"`
	EnrolledStudents    int             `db:"enrolled_students" json:"enrolled_students"`
	Status              ScheduleStatus  `db:"status" json:"status"`
	IsConflicted        bool            `db:"is_conflicted" json:"is_conflicted"`
	IsOverload          bool            `db:"is_overload" json:"is_overload"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// Persisted reports whether the schedule already has an identity.
func (s Schedule) Persisted() bool {
	return s.ID != ""
}

// NormalizedSection returns the section label used for comparisons.
func (s Schedule) NormalizedSection() string {
	return NormalizeSection(s.Section)
}

// NormalizeSection trims and case-folds a section label.
func NormalizeSection(section string) string {
	return strings.ToUpper(strings.TrimSpace(section))
}

// ScheduleFilter describes query params for listing schedules.
type ScheduleFilter struct {
	AcademicYearID string
	Semester       Semester
	RoomID         string
	SubjectID      string
	Section        string
	Status         ScheduleStatus
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// Room is the subset of room data the conflict engine reads.
type Room struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Capacity int    `db:"capacity" json:"capacity"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
