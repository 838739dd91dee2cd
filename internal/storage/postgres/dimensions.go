package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// queryRower is satisfied by pools and transactions.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// The no-op DO UPDATE makes RETURNING yield the existing id on conflict, so
// concurrent resolvers of one name all succeed with the same id.
const (
	upsertFaculty          = `INSERT INTO faculty (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	upsertInstitute        = `INSERT INTO institute (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	upsertFachgebiet       = `INSERT INTO fachgebiet (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	upsertExaminationBoard = `INSERT INTO examination_board (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id`
	upsertResponsible      = `INSERT INTO responsible_person (name, fg_id) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET fg_id = EXCLUDED.fg_id RETURNING id`
	upsertStudyProgram     = `INSERT INTO study_program (name, link) VALUES ($1, $2) ON CONFLICT (name) DO UPDATE SET link = EXCLUDED.link RETURNING id`
	upsertStupo            = `INSERT INTO stupo (study_program_id, name, link) VALUES ($1, $2, $3) ON CONFLICT (study_program_id, name) DO UPDATE SET link = EXCLUDED.link RETURNING id`
)

// Dimensions implements mapper.DimensionResolver with conflict-tolerant upserts.
type Dimensions struct {
	db queryRower
}

// NewDimensions builds a resolver on db.
func NewDimensions(db queryRower) (*Dimensions, error) {
	if db == nil {
		return nil, errors.New("pool is required")
	}
	return &Dimensions{db: db}, nil
}

func (d *Dimensions) upsert(ctx context.Context, what, query string, args ...any) (int64, error) {
	var id int64
	if err := d.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", what, err)
	}
	return id, nil
}

// Faculty resolves a faculty id by name.
func (d *Dimensions) Faculty(ctx context.Context, name string) (int64, error) {
	return d.upsert(ctx, "faculty", upsertFaculty, name)
}

// Institute resolves an institute id by name.
func (d *Dimensions) Institute(ctx context.Context, name string) (int64, error) {
	return d.upsert(ctx, "institute", upsertInstitute, name)
}

// Fachgebiet resolves a fachgebiet id by name.
func (d *Dimensions) Fachgebiet(ctx context.Context, name string) (int64, error) {
	return d.upsert(ctx, "fachgebiet", upsertFachgebiet, name)
}

// ExaminationBoard resolves an examination board id by name.
func (d *Dimensions) ExaminationBoard(ctx context.Context, name string) (int64, error) {
	return d.upsert(ctx, "examination board", upsertExaminationBoard, name)
}

// ResponsiblePerson resolves a person by name and records their fachgebiet.
func (d *Dimensions) ResponsiblePerson(ctx context.Context, name string, fachgebietID int64) (int64, error) {
	return d.upsert(ctx, "responsible person", upsertResponsible, name, fachgebietID)
}

// StudyProgram resolves a study program by name, refreshing its link.
func (d *Dimensions) StudyProgram(ctx context.Context, name, link string) (int64, error) {
	return d.upsert(ctx, "study program", upsertStudyProgram, name, link)
}

// Stupo resolves a study regulation within a study program.
func (d *Dimensions) Stupo(ctx context.Context, studyProgramID int64, name, link string) (int64, error) {
	return d.upsert(ctx, "stupo", upsertStupo, studyProgramID, name, link)
}
