package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

const noValue = "Keine Angabe"

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// knownLabels are bare label lines that never count as a value.
var knownLabels = map[string]bool{
	"Fakultät": true, "Institut": true, "Fachgebiet": true, "Prüfungsausschuss": true,
	"Modulverantwortliche*r": true, "Sekretariat": true, "Ansprechpartner*in": true,
	"E-Mail": true, "E-Mail-Adresse": true, "Webseite": true, "Website": true,
}

type formGroup struct {
	label string
	value string
	text  string
}

func (d *document) formGroups() []formGroup {
	var groups []formGroup
	d.dom.Find(".form-group").Each(func(_ int, s *goquery.Selection) {
		text := nodeText(s)
		label := nodeText(s.Find("label").First())
		value := text
		if label != "" {
			value = strings.TrimSpace(strings.TrimPrefix(text, label))
		}
		groups = append(groups, formGroup{label: strings.TrimSuffix(label, ":"), value: value, text: text})
	})
	return groups
}

func groupValue(groups []formGroup, label string) string {
	for _, g := range groups {
		if g.label == label && g.value != "" && g.value != noValue {
			return g.value
		}
	}
	return ""
}

// labeledValue finds the first line containing label and returns the rest
// of that line, or the next line when the label stands alone.
func (d *document) labeledValue(label string) string {
	idx := d.indexOf(label)
	if idx < 0 {
		return ""
	}
	rest := strings.Trim(strings.Replace(d.lines[idx], label, "", 1), " :")
	if rest != "" {
		return valueOrEmpty(rest)
	}
	if idx+1 < len(d.lines) {
		next := d.lines[idx+1]
		if !knownLabels[strings.TrimSuffix(next, ":")] {
			return valueOrEmpty(next)
		}
	}
	return ""
}

func valueOrEmpty(s string) string {
	if s == noValue {
		return ""
	}
	return s
}

func (d *document) organization(m *scraper.ScrapedModule, groups []formGroup) {
	m.Faculty = firstNonEmpty(groupValue(groups, "Fakultät"), d.labeledValue("Fakultät"))
	m.Institute = firstNonEmpty(groupValue(groups, "Institut"), d.labeledValue("Institut"))
	m.ExaminationBoard = firstNonEmpty(groupValue(groups, "Prüfungsausschuss"), d.labeledValue("Prüfungsausschuss"))
	m.Fachgebiet = firstNonEmpty(groupValue(groups, "Fachgebiet"), d.fachgebiet())
	m.ResponsiblePerson = d.responsiblePerson()
}

func (d *document) fachgebiet() string {
	for _, line := range d.lines {
		if (strings.Contains(line, "FG ") || strings.Contains(line, "Fachgebiet")) &&
			strings.IndexFunc(line, isDigit) >= 0 {
			return line
		}
	}
	return ""
}

const responsibleLookahead = 5

func (d *document) responsiblePerson() string {
	idx := d.indexOf("Modulverantwortliche")
	if idx < 0 {
		return ""
	}
	_, rest, _ := strings.Cut(d.lines[idx], "Modulverantwortliche")
	rest = strings.TrimPrefix(rest, "*r")
	rest = strings.TrimPrefix(rest, "r")
	candidates := []string{strings.Trim(rest, " :")}
	for i := idx + 1; i < len(d.lines) && i <= idx+responsibleLookahead; i++ {
		candidates = append(candidates, d.lines[i])
	}
	for _, c := range candidates {
		if c == "" || strings.Contains(c, "Modulverantwortliche") || c == noValue {
			continue
		}
		first, _ := utf8.DecodeRuneInString(c)
		if strings.Contains(c, ",") || (unicode.IsUpper(first) && utf8.RuneCountInString(c) > 3) {
			return c
		}
	}
	return ""
}

func contact(groups []formGroup) scraper.Contact {
	var c scraper.Contact
	for _, g := range groups {
		switch {
		case strings.Contains(g.text, "Sekretariat"):
			if c.Secretariat == "" {
				c.Secretariat = stripLabels(g.text, "Sekretariat")
			}
		case strings.Contains(g.text, "Ansprechpartner"):
			if c.ContactPerson == "" {
				c.ContactPerson = stripLabels(g.text, "Ansprechpartner*in", "Ansprechpartnerin", "Ansprechpartner")
			}
		case strings.Contains(g.text, "E-Mail"):
			if c.Email == "" {
				c.Email = emailPattern.FindString(g.text)
			}
		case strings.Contains(g.text, "Webseite") || strings.Contains(g.text, "Website"):
			if c.Website == "" {
				site := stripLabels(g.text, "Webseite", "Website")
				if strings.Contains(site, "http") || strings.Contains(site, "www") {
					c.Website = site
				}
			}
		}
	}
	return c
}

func stripLabels(text string, labels ...string) string {
	for _, label := range labels {
		text = strings.ReplaceAll(text, label, "")
	}
	return valueOrEmpty(strings.Trim(collapse(text), " :"))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
