package mapper

import (
	"strings"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

// ClassifyRotation maps a free-text rotation to its enumeration. Every input
// yields a value; unrecognized text is RotationUnknown.
func ClassifyRotation(raw string) scraper.Rotation {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wise", "wintersemester":
		return scraper.RotationWinter
	case "sose", "sommersemester":
		return scraper.RotationSummer
	case "wise/sose", "sose/wise", "jedes semester":
		return scraper.RotationBoth
	default:
		return scraper.RotationUnknown
	}
}

// ClassifyExamCategory maps a free-text exam component category. Every input
// yields a value; unrecognized text is ExamUnknown.
func ClassifyExamCategory(raw string) scraper.ExamCategory {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "oral", "mündlich":
		return scraper.ExamOral
	case "written", "schriftlich":
		return scraper.ExamWritten
	case "praktisch", "practical":
		return scraper.ExamPractical
	default:
		return scraper.ExamUnknown
	}
}

// NormalizeComponentType upper-cases a component type and folds ÜE to UE.
func NormalizeComponentType(raw string) string {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if t == "ÜE" {
		return "UE"
	}
	return t
}
