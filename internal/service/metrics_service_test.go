package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-scheduler/internal/models"
)

func TestMetricsServiceScheduleCheckOutcomes(t *testing.T) {
	metrics := NewMetricsService()

	metrics.ObserveScheduleCheck("create", &models.ScheduleCheck{ValidationErrors: []string{"bad"}}, time.Millisecond)
	metrics.ObserveScheduleCheck("create", &models.ScheduleCheck{
		Conflicts: []models.ConflictRecord{{Type: models.ConflictRoomTime}, {Type: models.ConflictBlockSectioning}},
		Warnings:  []string{"full"},
	}, time.Millisecond)
	metrics.ObserveScheduleCheck("update", &models.ScheduleCheck{Warnings: []string{"full"}}, time.Millisecond)
	metrics.ObserveScheduleCheck("check", &models.ScheduleCheck{}, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checksTotal.WithLabelValues("create", "invalid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checksTotal.WithLabelValues("create", "conflict")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checksTotal.WithLabelValues("update", "warning")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.checksTotal.WithLabelValues("check", "clean")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.conflictsTotal.WithLabelValues(string(models.ConflictBlockSectioning))))
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.ObserveHTTPRequest("GET", "/health", 200, time.Millisecond)
		metrics.ObserveScheduleCheck("create", &models.ScheduleCheck{}, time.Millisecond)
		metrics.ObserveAudit(nil, time.Second)
		metrics.RecordCacheOperation(true, time.Millisecond)
	})
	assert.Nil(t, metrics.Registry())
}
