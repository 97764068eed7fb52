package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-scheduler/internal/models"
)

func groups(blocks ...models.BlockSection) *models.BlockSectionReport {
	report := &models.BlockSectionReport{SchedulesScanned: 10}
	for _, b := range blocks {
		report.Groups = append(report.Groups, models.BlockSectionGroup{
			BlockSection: b,
			Pairs:        []models.BlockSectionConflictPair{{Message: "overlap"}},
		})
	}
	return report
}

func TestFilterSections(t *testing.T) {
	report := groups(
		models.BlockSection{YearLevel: 1, Section: "STEM-B"},
		models.BlockSection{YearLevel: 3, Section: "A"},
		models.BlockSection{YearLevel: 4, Section: "HUMSS-A"},
	)

	filtered := FilterSections(report, []string{"stemb"})
	assert.Len(t, filtered.Groups, 1)
	assert.Equal(t, "STEM-B", filtered.Groups[0].Section)

	filtered = FilterSections(report, []string{"year 3", "humss"})
	assert.Len(t, filtered.Groups, 2)
	assert.Equal(t, 10, filtered.SchedulesScanned)

	filtered = FilterSections(report, []string{"zzz"})
	assert.Empty(t, filtered.Groups)
	assert.Equal(t, 0, filtered.ConflictCount())

	assert.Same(t, report, FilterSections(report, nil))
	assert.Len(t, report.Groups, 3)
}
