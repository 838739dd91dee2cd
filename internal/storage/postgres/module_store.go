package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

const (
	insertModule = `
INSERT INTO module (
	id, version, scraping_run_id,
	valid_since_semester, valid_since_year, valid_until_semester, valid_until_year,
	languages, title, credits,
	faculty_id, institute_id, fg_id, responsible_id, examination_board_id,
	learning_result, content, teaching_information, max_attendees,
	registration, duration, requirements, additional_info, moses_link
) VALUES (
	$1, $2, $3, $4::semester, $5, $6::semester, $7, $8, $9, $10, $11, $12,
	$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
)`

	insertContact = `
INSERT INTO contact (module_id, module_version, module_scraping_run_id, secretariat, contact_person, email, website)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertComponent = `
INSERT INTO module_component (
	module_id, module_version, module_scraping_run_id, module_name, component_type, number, rotation, sws, language
) VALUES ($1, $2, $3, $4, $5, $6, $7::component_rotation, $8, $9)`

	insertWorkload = `
INSERT INTO module_workload_distribution (
	module_id, module_version, module_scraping_run_id, description, factor, hours, total_hours
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	insertUsage = `
INSERT INTO module_catalog_usage (module_id, module_version, module_scraping_run_id, stupo_id, first_usage, last_usage)
VALUES ($1, $2, $3, $4, $5, $6)`

	insertExam = `
INSERT INTO exam (
	module_id, module_version, module_scraping_run_id, graded, exam_type, language, duration, clef, description
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`

	insertExamComponent = `
INSERT INTO exam_component (exam_id, name, points, category, scope)
VALUES ($1, $2, $3, $4::exam_category, $5)`
)

// ModuleStore implements scraper.Persister. Every snapshot is inserted as new
// rows keyed by (id, version, scraping_run_id); existing snapshots are never
// updated.
type ModuleStore struct {
	db DB
}

// NewModuleStore builds a store on db.
func NewModuleStore(db DB) (*ModuleStore, error) {
	if db == nil {
		return nil, errors.New("pool is required")
	}
	return &ModuleStore{db: db}, nil
}

// Persist writes the whole snapshot in one transaction.
func (s *ModuleStore) Persist(ctx context.Context, snap *scraper.ModuleSnapshot) error {
	if snap == nil {
		return errors.New("persist module: nil snapshot")
	}
	m := snap.Module
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		key := []any{m.ID, m.Version, m.RunID}
		sinceSem, sinceYear := validityArgs(m.ValidSince)
		untilSem, untilYear := validityArgs(m.ValidUntil)
		if _, err := tx.Exec(ctx, insertModule,
			m.ID, m.Version, m.RunID,
			sinceSem, sinceYear, untilSem, untilYear,
			m.Languages, m.Title, m.Credits,
			m.FacultyID, m.InstituteID, m.FachgebietID, m.ResponsibleID, m.ExaminationBoardID,
			m.LearningResult, m.Content, m.TeachingInformation, m.MaxAttendees,
			m.Registration, m.Duration, m.Requirements, m.AdditionalInfo, m.MosesLink,
		); err != nil {
			return fmt.Errorf("insert module: %w", err)
		}

		if c := snap.Contact; c != nil {
			args := append(append([]any{}, key...), c.Secretariat, c.ContactPerson, c.Email, c.Website)
			if _, err := tx.Exec(ctx, insertContact, args...); err != nil {
				return fmt.Errorf("insert contact: %w", err)
			}
		}
		for _, c := range snap.Components {
			args := append(append([]any{}, key...), c.Name, c.Type, c.Number, rotationArg(c.Rotation), c.SWS, c.Language)
			if _, err := tx.Exec(ctx, insertComponent, args...); err != nil {
				return fmt.Errorf("insert component %q: %w", c.Number, err)
			}
		}
		for _, w := range snap.Workload {
			args := append(append([]any{}, key...), w.Description, w.Factor, w.Hours, w.Total)
			if _, err := tx.Exec(ctx, insertWorkload, args...); err != nil {
				return fmt.Errorf("insert workload: %w", err)
			}
		}
		for _, u := range snap.Usages {
			args := append(append([]any{}, key...), u.StupoID, u.FirstUsage, u.LastUsage)
			if _, err := tx.Exec(ctx, insertUsage, args...); err != nil {
				return fmt.Errorf("insert catalog usage: %w", err)
			}
		}
		if e := snap.Exam; e != nil {
			return insertExamRows(ctx, tx, key, e)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persist module %d v%d: %w", m.ID, m.Version, err)
	}
	return nil
}

func insertExamRows(ctx context.Context, tx pgx.Tx, key []any, e *scraper.ExamRow) error {
	args := append(append([]any{}, key...), e.Graded, e.Type, e.Language, e.Duration, e.Clef, e.Description)
	var examID int64
	if err := tx.QueryRow(ctx, insertExam, args...).Scan(&examID); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	for _, c := range e.Components {
		if _, err := tx.Exec(ctx, insertExamComponent, examID, c.Name, c.Points, categoryArg(c.Category), c.Scope); err != nil {
			return fmt.Errorf("insert exam component %q: %w", c.Name, err)
		}
	}
	return nil
}

func validityArgs(v *scraper.Validity) (any, any) {
	if v == nil {
		return nil, nil
	}
	return string(v.Semester), v.Year
}

// rotationArg stores unclassified rotations as NULL.
func rotationArg(r scraper.Rotation) any {
	switch r {
	case scraper.RotationWinter, scraper.RotationSummer, scraper.RotationBoth:
		return string(r)
	default:
		return nil
	}
}

// categoryArg maps categories to the exam_category enum labels.
func categoryArg(c scraper.ExamCategory) any {
	switch c {
	case scraper.ExamOral:
		return "oral"
	case scraper.ExamWritten:
		return "written"
	case scraper.ExamPractical:
		return "praktisch"
	default:
		return nil
	}
}
