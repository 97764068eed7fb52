package main

import (
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/pkg/export"
)

// FilterSections keeps the groups whose label or section fuzzy-matches any
// query, so "3a" finds "Year 3 - Section A". No queries keeps everything.
func FilterSections(report *models.BlockSectionReport, queries []string) *models.BlockSectionReport {
	if report == nil || len(queries) == 0 {
		return report
	}

	filtered := *report
	filtered.Groups = nil
	for _, group := range report.Groups {
		targets := []string{export.BlockSectionLabel(group.BlockSection), group.Section}
		for _, q := range queries {
			if len(fuzzy.FindNormalizedFold(q, targets)) > 0 {
				filtered.Groups = append(filtered.Groups, group)
				break
			}
		}
	}
	return &filtered
}
