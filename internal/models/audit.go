package models

import "time"

// BlockSectionConflictPair is one pair of schedules that double-book a block section.
type BlockSectionConflictPair struct {
	First   Schedule `json:"first"`
	Second  Schedule `json:"second"`
	Message string   `json:"message"`
}

// BlockSectionGroup aggregates conflicts for a single (year level, section).
type BlockSectionGroup struct {
	BlockSection
	Pairs []BlockSectionConflictPair `json:"pairs"`
}

// BlockSectionReport is the outcome of an audit sweep.
type BlockSectionReport struct {
	GeneratedAt      time.Time           `json:"generated_at"`
	SchedulesScanned int                 `json:"schedules_scanned"`
	FlagsUpdated     int                 `json:"flags_updated"`
	Groups           []BlockSectionGroup `json:"groups"`
}

// ConflictCount returns the number of conflicting pairs across all groups.
func (r *BlockSectionReport) ConflictCount() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, g := range r.Groups {
		total += len(g.Pairs)
	}
	return total
}

// AuditFilter narrows an audit sweep.
type AuditFilter struct {
	AcademicYearID string
	Semester       Semester
}
