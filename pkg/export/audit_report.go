package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/noah-isme/course-scheduler/internal/models"
)

// Column names of the audit report dataset.
const (
	ColumnBlockSection = "Block Section"
	ColumnFirst        = "Schedule"
	ColumnFirstSlot    = "Meets"
	ColumnSecond       = "Conflicts With"
	ColumnSecondSlot   = "Meets (Other)"
	ColumnRooms        = "Rooms"
)

// BlockSectionLabel renders a block section the way registrars refer to it.
func BlockSectionLabel(b models.BlockSection) string {
	return fmt.Sprintf("Year %d - Section %s", b.YearLevel, b.Section)
}

// AuditDataset flattens a block-section report into one row per conflicting pair.
func AuditDataset(report *models.BlockSectionReport) Dataset {
	data := Dataset{
		Headers: []string{ColumnBlockSection, ColumnFirst, ColumnFirstSlot, ColumnSecond, ColumnSecondSlot, ColumnRooms},
		GroupBy: ColumnBlockSection,
	}
	if report == nil {
		return data
	}
	for _, group := range report.Groups {
		label := BlockSectionLabel(group.BlockSection)
		for _, pair := range group.Pairs {
			data.Rows = append(data.Rows, map[string]string{
				ColumnBlockSection: label,
				ColumnFirst:        scheduleLabel(pair.First),
				ColumnFirstSlot:    slotLabel(pair.First),
				ColumnSecond:       scheduleLabel(pair.Second),
				ColumnSecondSlot:   slotLabel(pair.Second),
				ColumnRooms:        pair.First.RoomID + " / " + pair.Second.RoomID,
			})
		}
	}
	return data
}

// AuditSubtitle summarises the sweep for report headers.
func AuditSubtitle(report *models.BlockSectionReport) string {
	if report == nil {
		return ""
	}
	return fmt.Sprintf("Generated %s - %d schedules scanned - %d conflicts in %d block sections",
		report.GeneratedAt.Format("2006-01-02 15:04 MST"), report.SchedulesScanned, report.ConflictCount(), len(report.Groups))
}

// WriteAuditText prints the report grouped by block section.
func WriteAuditText(w io.Writer, report *models.BlockSectionReport) error {
	if report == nil {
		report = &models.BlockSectionReport{}
	}
	var b strings.Builder
	fmt.Fprintln(&b, AuditSubtitle(report))
	if report.ConflictCount() == 0 {
		fmt.Fprintln(&b, "No block-sectioning conflicts found.")
	}
	for _, group := range report.Groups {
		fmt.Fprintf(&b, "\n%s (%d)\n", BlockSectionLabel(group.BlockSection), len(group.Pairs))
		for _, pair := range group.Pairs {
			fmt.Fprintf(&b, "  - %s [%s] <> %s [%s]\n",
				scheduleLabel(pair.First), slotLabel(pair.First),
				scheduleLabel(pair.Second), slotLabel(pair.Second))
		}
	}
	if report.FlagsUpdated > 0 {
		fmt.Fprintf(&b, "\n%d conflict flags updated.\n", report.FlagsUpdated)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func scheduleLabel(s models.Schedule) string {
	return fmt.Sprintf("%s (%s)", s.SubjectID, s.ID)
}

func slotLabel(s models.Schedule) string {
	return fmt.Sprintf("%s %s-%s", s.DayPattern, s.StartTime, s.EndTime)
}
