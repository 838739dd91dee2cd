// Package extract reads module description pages. Every field is best
// effort: a missing or malformed part of the page leaves that field empty.
// Only the identifiers in the detail URL are mandatory.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

// ErrMissingIdentifier is returned when the detail URL lacks a numeric
// nummer or version parameter.
var ErrMissingIdentifier = errors.New("detail url lacks module identifier")

// Extractor implements scraper.Extractor.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract parses body fetched from detailURL.
func (e *Extractor) Extract(detailURL string, body []byte) (*scraper.ScrapedModule, error) {
	base, number, version, err := identifiers(detailURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseDocument(body, base)
	if err != nil {
		return nil, fmt.Errorf("extract module %d v%d: %w", number, version, err)
	}

	m := &scraper.ScrapedModule{
		Number:  number,
		Version: version,
		URL:     detailURL,
	}
	m.Title = doc.title()
	m.Credits = doc.credits()
	m.Languages = doc.languages()
	m.ValidSince, m.ValidUntil = doc.validity()

	groups := doc.formGroups()
	doc.organization(m, groups)
	m.Contact = contact(groups)

	m.LearningResult = section(doc.lines, "Lernergebnisse", "Qualifikationsziele")
	m.Content = section(doc.lines, "Lehrinhalte")
	m.TeachingInformation = section(doc.lines, "Lehrformen", "Beschreibung der Lehr- und Lernformen")
	m.Requirements = section(doc.lines, "Voraussetzungen")
	m.Registration = section(doc.lines, "Anmeldeformalitäten", "Anmeldemodalitäten", "Anmeldung")
	m.Duration = section(doc.lines, "Dauer des Moduls", "Dauer")
	m.AdditionalInfo = section(doc.lines, "Sonstiges", "Anmerkungen")
	m.MaxAttendees = doc.maxAttendees()

	tables := doc.tables()
	m.Components = components(tables)
	m.Workload = workload(tables)
	m.Usages = usages(tables)
	m.Exam = doc.exam(tables)

	e.logger.Debug("module extracted",
		zap.Int("number", number),
		zap.Int("version", version),
		zap.String("title", m.Title),
		zap.Int("components", len(m.Components)),
		zap.Int("workload_lines", len(m.Workload)),
		zap.Int("usages", len(m.Usages)),
		zap.Bool("exam", m.Exam != nil),
	)
	return m, nil
}

func identifiers(detailURL string) (*url.URL, int, int, error) {
	u, err := url.Parse(detailURL)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %v", ErrMissingIdentifier, err)
	}
	q := u.Query()
	number, err := strconv.Atoi(q.Get("nummer"))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: nummer in %q", ErrMissingIdentifier, detailURL)
	}
	version, err := strconv.Atoi(q.Get("version"))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: version in %q", ErrMissingIdentifier, detailURL)
	}
	return u, number, version, nil
}
