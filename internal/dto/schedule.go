package dto

import "github.com/noah-isme/course-scheduler/internal/models"

// ScheduleRequest is the payload for creating, updating or dry-run checking a schedule.
type ScheduleRequest struct {
	SubjectID           string          `json:"subject_id" validate:"required"`
	CurriculumSubjectID *string         `json:"curriculum_subject_id" validate:"omitempty,min=1"`
	RoomID              string          `json:"room_id" validate:"required"`
	FacultyID           *string         `json:"faculty_id" validate:"omitempty,min=1"`
	AcademicYearID      string          `json:"academic_year_id" validate:"required"`
	Semester            models.Semester `json:"semester" validate:"required,semester"`
	Section             string          `json:"section" validate:"required,max=32"`
	DayPattern          string          `json:"day_pattern" validate:"required,day_pattern"`
	StartTime           string          `json:"start_time" validate:"required"`
	EndTime             string          `json:"end_time" validate:"required"`
	EnrolledStudents    int             `json:"enrolled_students" validate:"min=0"`
	IsOverload          bool            `json:"is_overload"`
	AcknowledgeWarnings bool            `json:"acknowledge_warnings"`
}

// ScheduleResult is returned after a successful create or update.
type ScheduleResult struct {
	Schedule *models.Schedule `json:"schedule"`
	Warnings []string         `json:"warnings,omitempty"`
}

// AuditRequest scopes an audit sweep. Synchronous runs never write flags;
// enqueued sweeps always do.
type AuditRequest struct {
	AcademicYearID string          `json:"academic_year_id" form:"academicYearId"`
	Semester       models.Semester `json:"semester" form:"semester" validate:"omitempty,semester"`
}

// AuditJobResponse acknowledges an enqueued audit sweep.
type AuditJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}
