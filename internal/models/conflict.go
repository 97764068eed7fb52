package models

import (
	"errors"
	"strings"
)

// ConflictType identifies the rule that produced a conflict record.
type ConflictType string

const (
	ConflictRoomTime                ConflictType = "room_time_conflict"
	ConflictBlockSectioning         ConflictType = "block_sectioning_conflict"
	ConflictDuplicateSubjectSection ConflictType = "duplicate_subject_section"
)

// ErrDuplicateSubjectSection is returned by storage when a concurrent write
// already holds the subject and section for the term.
var ErrDuplicateSubjectSection = errors.New("subject is already scheduled for this section and term")

// ParseConflictType maps stored or user supplied names onto a ConflictType.
// "section_conflict" is the historical name of the block-sectioning rule.
func ParseConflictType(raw string) (ConflictType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ConflictRoomTime):
		return ConflictRoomTime, true
	case string(ConflictBlockSectioning), "section_conflict":
		return ConflictBlockSectioning, true
	case string(ConflictDuplicateSubjectSection):
		return ConflictDuplicateSubjectSection, true
	}
	return "", false
}

// BlockSection identifies a cohort of students sharing a timetable.
type BlockSection struct {
	YearLevel int    `json:"year_level"`
	Section   string `json:"section"`
}

// ConflictRecord describes one collision between a candidate and an existing schedule.
type ConflictRecord struct {
	Type         ConflictType  `json:"type"`
	Schedule     Schedule      `json:"schedule"`
	Message      string        `json:"message"`
	BlockSection *BlockSection `json:"block_section,omitempty"`
}

// ScheduleConflictError is returned when a schedule collides with existing ones.
type ScheduleConflictError struct {
	Message   string           `json:"message"`
	Conflicts []ConflictRecord `json:"conflicts"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// ScheduleCheck is the combined outcome of validating a candidate schedule.
type ScheduleCheck struct {
	ValidationErrors []string         `json:"validation_errors,omitempty"`
	Conflicts        []ConflictRecord `json:"conflicts,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
}

// Blocking reports whether the schedule must not be persisted.
func (c *ScheduleCheck) Blocking() bool {
	return c != nil && (len(c.ValidationErrors) > 0 || len(c.Conflicts) > 0)
}
