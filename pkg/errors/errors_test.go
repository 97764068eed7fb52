package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrNotFound, "schedule not found"))
	appErr := FromError(wrapped)
	assert.Equal(t, ErrNotFound.Code, appErr.Code)
	assert.Equal(t, "schedule not found", appErr.Message)
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.True(t, errors.Is(appErr, sql.ErrConnDone))
	assert.Nil(t, FromError(nil))
}

func TestWithDetailsDoesNotMutateSentinel(t *testing.T) {
	detailed := ErrConflict.WithDetails(map[string]int{"conflicts": 2})
	assert.NotNil(t, detailed.Details)
	assert.Nil(t, ErrConflict.Details)
}
