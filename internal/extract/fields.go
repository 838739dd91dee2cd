package extract

import (
	"strconv"
	"strings"
	"unicode"
)

var creditMarkers = []string{"LP", "Leistungspunkte"}

func (d *document) title() string {
	return collapse(d.dom.Find("h1").First().Text())
}

// credits takes the digits right before the first points marker.
func (d *document) credits() *int {
	for _, line := range d.lines {
		if !strings.Contains(line, "Leistungspunkte") && !strings.Contains(line, " LP") {
			continue
		}
		for _, marker := range creditMarkers {
			idx := strings.Index(line, marker)
			if idx < 0 {
				continue
			}
			if n, ok := trailingNumber(line[:idx]); ok {
				return &n
			}
		}
	}
	return nil
}

func trailingNumber(s string) (int, bool) {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	end := len(s)
	start := end
	for start > 0 && s[start-1] >= '0' && s[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// firstNumber returns the first run of ASCII digits in s.
func firstNumber(s string) (int, bool) {
	start := strings.IndexFunc(s, isDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// languages reads the teaching languages, defaulting to German.
func (d *document) languages() []string {
	var langs []string
	add := func(code string) {
		for _, have := range langs {
			if have == code {
				return
			}
		}
		langs = append(langs, code)
	}
	for i, line := range d.lines {
		if !strings.Contains(strings.ToLower(line), "sprache") {
			continue
		}
		window := line
		if i+1 < len(d.lines) {
			window += " " + d.lines[i+1]
		}
		for _, tok := range strings.FieldsFunc(strings.ToLower(window), notLetter) {
			switch tok {
			case "deutsch", "german", "de":
				add("de")
			case "englisch", "english", "en":
				add("en")
			}
		}
	}
	if len(langs) == 0 {
		return []string{"de"}
	}
	return langs
}

func notLetter(r rune) bool {
	return !unicode.IsLetter(r)
}

var semesterTokens = []string{"SoSe", "WiSe", "SS", "WS"}

var validityLabels = strings.NewReplacer(
	"Gültigkeit", "",
	"Gültig seit", "",
	"gültig seit", "",
	"Seit", "",
	"seit", "",
)

// validity returns the raw "valid since" and optional "valid until" strings.
func (d *document) validity() (since, until string) {
	for i, line := range d.lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "gültig") && !strings.Contains(lower, "seit") {
			continue
		}
		candidate := line
		if !hasSemesterToken(candidate) {
			if i+1 >= len(d.lines) || !hasSemesterToken(d.lines[i+1]) {
				continue
			}
			candidate = d.lines[i+1]
		}
		cleaned := strings.Trim(validityLabels.Replace(candidate), " :")
		since, until, _ = strings.Cut(cleaned, " bis ")
		return strings.TrimSpace(since), strings.TrimSpace(until)
	}
	return "", ""
}

func hasSemesterToken(s string) bool {
	for _, tok := range semesterTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// maxAttendees reads the first number after "beträgt" near its header.
func (d *document) maxAttendees() *int {
	idx := d.headerIndex("Maximale teilnehmende Personen")
	if idx < 0 {
		return nil
	}
	end := idx + 4
	if end > len(d.lines) {
		end = len(d.lines)
	}
	window := strings.Join(d.lines[idx:end], " ")
	window = strings.Replace(window, "Maximale teilnehmende Personen", "", 1)
	if _, after, ok := strings.Cut(window, "beträgt"); ok {
		window = after
	}
	n, ok := firstNumber(window)
	if !ok {
		return nil
	}
	return &n
}
