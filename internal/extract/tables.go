package extract

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

const (
	maxComponentTypeLength = 10
	minUsageCells          = 5
)

type cell struct {
	text     string
	linkText string
	href     string
}

// table is one HTML table with lower-cased header names and its data rows.
type table struct {
	headers []string
	rows    [][]cell
}

func (t table) column(match func(h string) bool) int {
	for i, h := range t.headers {
		if match(h) {
			return i
		}
	}
	return -1
}

func (t table) headerText() string {
	return strings.Join(t.headers, " ")
}

func get(row []cell, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx].text
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func (d *document) tables() []table {
	var out []table
	d.dom.Find("table").Each(func(_ int, tbl *goquery.Selection) {
		var t table
		headerSeen := false
		tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
			if !tr.ParentsFiltered("table").First().IsSelection(tbl) {
				return
			}
			if !headerSeen {
				headerCells := tr.Children().Filter("th")
				if headerCells.Length() == 0 {
					headerCells = tr.Children().Filter("td")
				}
				headerCells.Each(func(_ int, th *goquery.Selection) {
					t.headers = append(t.headers, strings.ToLower(nodeText(th)))
				})
				headerSeen = true
				return
			}
			var row []cell
			tr.Children().Filter("td, th").Each(func(_ int, td *goquery.Selection) {
				link := td.Find("a").First()
				href, _ := link.Attr("href")
				row = append(row, cell{
					text:     nodeText(td),
					linkText: nodeText(link),
					href:     d.resolve(href),
				})
			})
			if len(row) > 0 {
				t.rows = append(t.rows, row)
			}
		})
		if len(t.headers) > 0 {
			out = append(out, t)
		}
	})
	return out
}

func components(tables []table) []scraper.Component {
	var out []scraper.Component
	for _, t := range tables {
		typ := t.column(func(h string) bool { return containsAny(h, "art", "typ") })
		if typ < 0 {
			continue
		}
		number := t.column(func(h string) bool { return containsAny(h, "nummer", "nr") })
		rotation := t.column(func(h string) bool { return containsAny(h, "turnus", "rotation") })
		language := t.column(func(h string) bool { return containsAny(h, "sprache", "language") })
		sws := t.column(func(h string) bool { return strings.Contains(h, "sws") })
		name := t.column(func(h string) bool { return containsAny(h, "lehrveranstaltung", "name", "titel") })
		if number < 0 && rotation < 0 && sws < 0 {
			continue
		}
		for _, row := range t.rows {
			kind := get(row, typ)
			if kind == "" || utf8.RuneCountInString(kind) > maxComponentTypeLength {
				continue
			}
			c := scraper.Component{
				Name:     get(row, name),
				Type:     kind,
				Number:   get(row, number),
				Rotation: get(row, rotation),
				Language: get(row, language),
			}
			if n, ok := firstNumber(get(row, sws)); ok {
				c.SWS = n
			}
			out = append(out, c)
		}
	}
	return out
}

func workload(tables []table) []scraper.WorkloadLine {
	var out []scraper.WorkloadLine
	for _, t := range tables {
		if !containsAny(t.headerText(), "aufwand", "stunden") {
			continue
		}
		desc := t.column(func(h string) bool { return containsAny(h, "beschreibung", "aufwand") })
		if desc < 0 {
			desc = 0
		}
		factor := t.column(func(h string) bool { return strings.Contains(h, "multiplikator") })
		hours := t.column(func(h string) bool { return strings.Contains(h, "stunden") && !strings.Contains(h, "gesamt") })
		total := t.column(func(h string) bool { return strings.Contains(h, "gesamt") })
		if total < 0 {
			total = len(t.headers) - 1
		}
		for _, row := range t.rows {
			description := get(row, desc)
			sum, ok := parseHours(get(row, total))
			if description == "" || !ok || sum <= 0 {
				continue
			}
			line := scraper.WorkloadLine{Description: description, Total: sum}
			if f, ok := parseHours(get(row, factor)); ok {
				line.Factor = &f
			}
			if h, ok := parseHours(get(row, hours)); ok {
				line.Hours = &h
			}
			out = append(out, line)
		}
	}
	return out
}

func parseHours(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(s, ",", "."), "h", ""))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func usages(tables []table) []scraper.CatalogUsage {
	var out []scraper.CatalogUsage
	for _, t := range tables {
		if !containsAny(t.headerText(), "studiengang", "verwendung") {
			continue
		}
		for _, row := range t.rows {
			if len(row) < minUsageCells {
				continue
			}
			program := firstNonEmpty(row[1].linkText, row[1].text)
			if program == "" || strings.HasPrefix(program, "$(function") {
				continue
			}
			out = append(out, scraper.CatalogUsage{
				Program:     program,
				ProgramLink: row[1].href,
				Stupo:       firstNonEmpty(row[2].linkText, row[2].text),
				StupoLink:   row[2].href,
				FirstUsage:  row[len(row)-2].text,
				LastUsage:   row[len(row)-1].text,
			})
		}
	}
	return out
}

func examComponents(tables []table) []scraper.ExamComponent {
	for _, t := range tables {
		name := t.column(func(h string) bool { return h == "name" })
		points := t.column(func(h string) bool { return h == "punkte" })
		if name < 0 || points < 0 {
			continue
		}
		category := t.column(func(h string) bool { return h == "kategorie" })
		scope := t.column(func(h string) bool { return containsAny(h, "dauer", "umfang") })

		var out []scraper.ExamComponent
		for _, row := range t.rows {
			n := get(row, name)
			if n == "" || n == noValue {
				continue
			}
			out = append(out, scraper.ExamComponent{
				Name:     n,
				Points:   digitsOnly(get(row, points)),
				Category: valueOrEmpty(get(row, category)),
				Scope:    valueOrEmpty(get(row, scope)),
			})
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func digitsOnly(s string) int {
	var b strings.Builder
	for _, r := range s {
		if isDigit(r) {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
