package extract

import (
	"strings"
	"unicode/utf8"
)

// minSectionLength is the shortest section body worth keeping.
const minSectionLength = 4

// nextSectionHeaders bound a section; order matches the page layout.
var nextSectionHeaders = []string{
	"Modulbestandteile",
	"Arbeitsaufwand",
	"Prüfungsform",
	"Verwendung in Studiengängen",
	"Lernergebnisse",
	"Lehrinhalte",
	"Lehrformen",
	"Voraussetzungen",
	"Literatur",
	"Anmerkungen",
	"Maximale teilnehmende Personen",
	"Anmeldeformalitäten",
	"Dauer des Moduls",
	"Abschluss des Moduls",
	"Kontakt",
	"Zugehörigkeit",
}

type scanState int

const (
	stateOutside scanState = iota
	stateInside
	stateDone
)

// sectionScanner is fed one line at a time. Outside it waits for a line
// matching header; inside it collects lines until one matches a stop header.
type sectionScanner struct {
	header string
	stops  []string
	state  scanState
	body   []string
}

func newSectionScanner(header string, stops []string) *sectionScanner {
	return &sectionScanner{header: header, stops: stops}
}

// Feed consumes a line and reports whether scanning is finished.
func (s *sectionScanner) Feed(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch s.state {
	case stateOutside:
		if matchesHeader(trimmed, s.header) {
			s.state = stateInside
		}
	case stateInside:
		for _, stop := range s.stops {
			if matchesHeader(trimmed, stop) {
				s.state = stateDone
				return true
			}
		}
		s.body = append(s.body, line)
	case stateDone:
		return true
	}
	return false
}

// Result returns the trimmed section body, or false when the header never
// appeared or the body is too short.
func (s *sectionScanner) Result() (string, bool) {
	if s.state == stateOutside {
		return "", false
	}
	content := strings.TrimSpace(strings.Join(s.body, "\n"))
	if utf8.RuneCountInString(content) < minSectionLength {
		return "", false
	}
	return content, true
}

func matchesHeader(line, header string) bool {
	return line == header || strings.HasPrefix(line, header)
}

func scanSection(lines []string, header string, stops []string) (string, bool) {
	sc := newSectionScanner(header, stops)
	for _, line := range lines {
		if sc.Feed(line) {
			break
		}
	}
	return sc.Result()
}

// section tries each header in order and returns the first usable body.
func section(lines []string, headers ...string) string {
	for _, header := range headers {
		if content, ok := scanSection(lines, header, nextSectionHeaders); ok {
			return content
		}
	}
	return ""
}
