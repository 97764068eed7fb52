package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// CurriculumRepository resolves curriculum links for schedules.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository constructs the repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// ResolveYearLevel follows curriculum subject -> curriculum term -> year level.
// ok is false when the link or the year level is missing.
func (r *CurriculumRepository) ResolveYearLevel(ctx context.Context, curriculumSubjectID string) (int, bool, error) {
	const query = `SELECT ct.year_level FROM curriculum_subjects cs JOIN curriculum_terms ct ON ct.id = cs.curriculum_term_id WHERE cs.id = $1`
	var level sql.NullInt64
	if err := r.db.GetContext(ctx, &level, query, curriculumSubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve year level: %w", err)
	}
	if !level.Valid {
		return 0, false, nil
	}
	return int(level.Int64), true, nil
}
