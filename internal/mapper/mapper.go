// Package mapper normalizes scraped modules into the relational row graph
// stored for one scraping run.
package mapper

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

const (
	// UnknownName stands in for an absent reference entity name.
	UnknownName = "Unknown"
	// DefaultLink is used for study programs and stupos without a link.
	DefaultLink = "https://www.tu-berlin.de"

	defaultLanguage = "de"
	defaultFactor   = 1.0
)

var (
	errEmptyComponentType = errors.New("component type is empty")
	errEmptyProgram       = errors.New("study program name is empty")
)

// DimensionResolver performs get-or-create of reference entities by natural
// key. Implementations must return the existing id for a known key and must
// tolerate concurrent callers resolving the same key.
type DimensionResolver interface {
	Faculty(ctx context.Context, name string) (int64, error)
	Institute(ctx context.Context, name string) (int64, error)
	Fachgebiet(ctx context.Context, name string) (int64, error)
	ExaminationBoard(ctx context.Context, name string) (int64, error)
	ResponsiblePerson(ctx context.Context, name string, fachgebietID int64) (int64, error)
	StudyProgram(ctx context.Context, name, link string) (int64, error)
	Stupo(ctx context.Context, studyProgramID int64, name, link string) (int64, error)
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger used for skipped child rows.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Mapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLegacyDefaults maps unknown rotations to summer and unknown exam
// categories to written instead of leaving them unclassified.
func WithLegacyDefaults(enabled bool) Option {
	return func(m *Mapper) {
		m.legacyDefaults = enabled
	}
}

// Mapper implements scraper.Mapper.
type Mapper struct {
	dims           DimensionResolver
	logger         *zap.Logger
	legacyDefaults bool
}

// New builds a Mapper backed by dims.
func New(dims DimensionResolver, opts ...Option) *Mapper {
	m := &Mapper{dims: dims, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map resolves dimensions and builds the snapshot rows for runID. Failing to
// resolve a module-level dimension fails the module; failing child rows are
// logged and dropped.
func (m *Mapper) Map(ctx context.Context, runID int64, s *scraper.ScrapedModule) (*scraper.ModuleSnapshot, error) {
	if s == nil {
		return nil, errors.New("map module: nil module")
	}
	row, err := m.moduleRow(ctx, runID, s)
	if err != nil {
		return nil, fmt.Errorf("map module %d v%d: %w", s.Number, s.Version, err)
	}
	snap := &scraper.ModuleSnapshot{
		Module:  row,
		Contact: contactRow(s.Contact),
	}
	log := m.logger.With(zap.Int("number", s.Number), zap.Int("version", s.Version))

	for i, c := range s.Components {
		cr, err := m.componentRow(c)
		if err != nil {
			log.Warn("skipping component", zap.Int("index", i), zap.Error(err))
			continue
		}
		snap.Components = append(snap.Components, cr)
	}
	for _, w := range s.Workload {
		snap.Workload = append(snap.Workload, workloadRow(w))
	}
	for i, u := range s.Usages {
		ur, err := m.usageRow(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("map module %d v%d: %w", s.Number, s.Version, ctx.Err())
			}
			log.Warn("skipping catalog usage", zap.Int("index", i), zap.String("program", u.Program), zap.Error(err))
			continue
		}
		snap.Usages = append(snap.Usages, ur)
	}
	if s.Exam != nil {
		snap.Exam = m.examRow(*s.Exam)
	}
	return snap, nil
}

func (m *Mapper) moduleRow(ctx context.Context, runID int64, s *scraper.ScrapedModule) (scraper.ModuleRow, error) {
	row := scraper.ModuleRow{
		ID:                  s.Number,
		Version:             s.Version,
		RunID:               runID,
		ValidSince:          ParseValidity(s.ValidSince),
		ValidUntil:          ParseValidity(s.ValidUntil),
		Languages:           s.Languages,
		Title:               s.Title,
		Credits:             s.Credits,
		LearningResult:      optional(s.LearningResult),
		Content:             optional(s.Content),
		TeachingInformation: optional(s.TeachingInformation),
		MaxAttendees:        s.MaxAttendees,
		Registration:        optional(s.Registration),
		Duration:            optional(s.Duration),
		Requirements:        optional(s.Requirements),
		AdditionalInfo:      optional(s.AdditionalInfo),
		MosesLink:           s.URL,
	}
	if len(row.Languages) == 0 {
		row.Languages = []string{defaultLanguage}
	}

	var err error
	if row.FacultyID, err = m.dims.Faculty(ctx, orUnknown(s.Faculty)); err != nil {
		return row, fmt.Errorf("resolve faculty: %w", err)
	}
	if row.InstituteID, err = m.dims.Institute(ctx, orUnknown(s.Institute)); err != nil {
		return row, fmt.Errorf("resolve institute: %w", err)
	}
	if row.FachgebietID, err = m.dims.Fachgebiet(ctx, orUnknown(s.Fachgebiet)); err != nil {
		return row, fmt.Errorf("resolve fachgebiet: %w", err)
	}
	if row.ExaminationBoardID, err = m.dims.ExaminationBoard(ctx, orUnknown(s.ExaminationBoard)); err != nil {
		return row, fmt.Errorf("resolve examination board: %w", err)
	}
	if row.ResponsibleID, err = m.dims.ResponsiblePerson(ctx, orUnknown(s.ResponsiblePerson), row.FachgebietID); err != nil {
		return row, fmt.Errorf("resolve responsible person: %w", err)
	}
	return row, nil
}

func (m *Mapper) componentRow(c scraper.Component) (scraper.ComponentRow, error) {
	kind := NormalizeComponentType(c.Type)
	if kind == "" {
		return scraper.ComponentRow{}, errEmptyComponentType
	}
	lang := strings.TrimSpace(c.Language)
	if lang == "" {
		lang = defaultLanguage
	}
	return scraper.ComponentRow{
		Name:     c.Name,
		Type:     kind,
		Number:   c.Number,
		Rotation: m.rotation(c.Rotation),
		SWS:      c.SWS,
		Language: lang,
	}, nil
}

func (m *Mapper) rotation(raw string) scraper.Rotation {
	r := ClassifyRotation(raw)
	if r == scraper.RotationUnknown && m.legacyDefaults {
		return scraper.RotationSummer
	}
	return r
}

func (m *Mapper) category(raw string) scraper.ExamCategory {
	c := ClassifyExamCategory(raw)
	if c == scraper.ExamUnknown && m.legacyDefaults {
		return scraper.ExamWritten
	}
	return c
}

func workloadRow(w scraper.WorkloadLine) scraper.WorkloadRow {
	row := scraper.WorkloadRow{Description: w.Description, Factor: defaultFactor, Total: w.Total}
	if w.Factor != nil {
		row.Factor = *w.Factor
	}
	if w.Hours != nil {
		row.Hours = *w.Hours
	}
	return row
}

func (m *Mapper) usageRow(ctx context.Context, u scraper.CatalogUsage) (scraper.UsageRow, error) {
	if strings.TrimSpace(u.Program) == "" {
		return scraper.UsageRow{}, errEmptyProgram
	}
	programID, err := m.dims.StudyProgram(ctx, u.Program, orDefaultLink(u.ProgramLink))
	if err != nil {
		return scraper.UsageRow{}, fmt.Errorf("resolve study program: %w", err)
	}
	stupoID, err := m.dims.Stupo(ctx, programID, orUnknown(u.Stupo), orDefaultLink(u.StupoLink))
	if err != nil {
		return scraper.UsageRow{}, fmt.Errorf("resolve stupo: %w", err)
	}
	return scraper.UsageRow{
		StupoID:    stupoID,
		FirstUsage: optional(u.FirstUsage),
		LastUsage:  optional(u.LastUsage),
	}, nil
}

func (m *Mapper) examRow(e scraper.Exam) *scraper.ExamRow {
	row := &scraper.ExamRow{
		Graded:      e.Graded,
		Type:        e.Type,
		Language:    optional(e.Language),
		Duration:    optional(e.Duration),
		Clef:        optional(e.Clef),
		Description: optional(e.Description),
	}
	for _, c := range e.Components {
		row.Components = append(row.Components, scraper.ExamComponentRow{
			Name:     c.Name,
			Points:   c.Points,
			Category: m.category(c.Category),
			Scope:    optional(c.Scope),
		})
	}
	return row
}

func contactRow(c scraper.Contact) *scraper.ContactRow {
	if c.Empty() {
		return nil
	}
	return &scraper.ContactRow{
		Secretariat:   optional(c.Secretariat),
		ContactPerson: optional(c.ContactPerson),
		Email:         optional(c.Email),
		Website:       optional(c.Website),
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func orUnknown(name string) string {
	if name = strings.TrimSpace(name); name == "" {
		return UnknownName
	}
	return name
}

func orDefaultLink(link string) string {
	if link = strings.TrimSpace(link); link == "" {
		return DefaultLink
	}
	return link
}
