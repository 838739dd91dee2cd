package mapper

import (
	"strconv"
	"strings"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

var summerTokens = []string{"SoSe", "Sommer", "Summer"}

// ParseValidity turns strings like "WiSe 2018" or "Sommersemester 2019/2020"
// into a semester and year. It returns nil when no year can be found.
func ParseValidity(raw string) *scraper.Validity {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	semester := scraper.SemesterWinter
	for _, tok := range summerTokens {
		if strings.Contains(raw, tok) {
			semester = scraper.SemesterSummer
			break
		}
	}
	for _, word := range strings.Fields(raw) {
		head, _, _ := strings.Cut(word, "/")
		if year, err := strconv.Atoi(head); err == nil {
			return &scraper.Validity{Semester: semester, Year: year}
		}
	}
	return nil
}
