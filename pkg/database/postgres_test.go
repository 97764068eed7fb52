package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/course-scheduler/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "registrar", Password: "secret", Name: "course_scheduler", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=registrar password=secret dbname=course_scheduler sslmode=disable", dsn)
}
