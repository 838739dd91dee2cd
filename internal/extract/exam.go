package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

const (
	completionMarker = "Abschluss des Moduls"
	markerLookahead  = 3
	gradingLookahead = 3
	clefMaxLines     = 30
	minExamTypeLen   = 4
)

var (
	examTypeStops     = []string{"Sprache", "Art der", "Benotung"}
	examLanguageStops = []string{"Dauer", "Prüfungs"}
	examDurationStops = []string{"Prüfungs", "Notenschlüssel"}
	clefStops         = []string{"Prüfungsbeschreibung", "Dauer des Moduls", "Sonstiges"}
	examSectionStops  = append(append([]string(nil), nextSectionHeaders...), "Prüfungselemente", "Notenschlüssel", "Sonstiges")
)

// exam parses the completion block. It returns nil when the block is
// missing or names no exam type.
func (d *document) exam(tables []table) *scraper.Exam {
	idx := d.headerIndex(completionMarker)
	if idx < 0 {
		return nil
	}
	after := d.lines[idx+1:]

	examType := markerValue(after, "Prüfungsform", examTypeStops)
	if utf8.RuneCountInString(examType) < minExamTypeLen {
		return nil
	}
	exam := &scraper.Exam{
		Graded:   graded(after),
		Type:     examType,
		Language: firstNonEmpty(markerValue(after, "Sprache(n)", examLanguageStops), markerValue(after, "Sprache", examLanguageStops)),
		Duration: markerValue(after, "Dauer/Umfang", examDurationStops),
		Clef:     clef(after),
	}
	if desc, ok := scanSection(after, "Prüfungsbeschreibung", examSectionStops); ok {
		exam.Description = desc
	}
	if d.indexOf("Prüfungselemente") >= 0 {
		exam.Components = examComponents(tables)
	}
	return exam
}

// graded defaults to true unless "Unbenotet" follows the grading marker.
func graded(lines []string) bool {
	for i, line := range lines {
		pos := strings.Index(line, "Benotung")
		if pos < 0 {
			continue
		}
		window := []string{line[pos+len("Benotung"):]}
		for j := i + 1; j < len(lines) && j <= i+gradingLookahead; j++ {
			window = append(window, lines[j])
		}
		for _, w := range window {
			lower := strings.ToLower(w)
			if strings.Contains(lower, "unbenotet") {
				return false
			}
			if strings.Contains(lower, "benotet") {
				return true
			}
		}
		return true
	}
	return true
}

// markerValue reads the text following marker, either on the same line or
// on one of the next few lines, cut at the first stop marker.
func markerValue(lines []string, marker string, stops []string) string {
	for i, line := range lines {
		pos := strings.Index(line, marker)
		if pos < 0 {
			continue
		}
		candidates := []string{line[pos+len(marker):]}
		for j := i + 1; j < len(lines) && j <= i+markerLookahead; j++ {
			candidates = append(candidates, lines[j])
		}
		for _, c := range candidates {
			c = strings.TrimSpace(strings.TrimLeft(c, ": "))
			if c == "" {
				continue
			}
			for _, stop := range stops {
				if strings.HasPrefix(c, stop) {
					return ""
				}
				if cut := strings.Index(c, stop); cut > 0 {
					c = c[:cut]
				}
			}
			return valueOrEmpty(strings.TrimSpace(c))
		}
		return ""
	}
	return ""
}

func clef(lines []string) string {
	idx := -1
	for i, line := range lines {
		if strings.Contains(line, "Notenschlüssel") {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ""
	}
	var parts []string
	for i := idx + 1; i < len(lines) && i <= idx+clefMaxLines; i++ {
		line := lines[i]
		if containsAny(line, clefStops...) {
			break
		}
		if strings.Contains(line, "fa-star") {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " | ")
}
