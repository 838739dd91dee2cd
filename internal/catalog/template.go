package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultURLTemplate points at the public module description page.
const DefaultURLTemplate = "https://moseskonto.tu-berlin.de/moses/modultransfersystem/bolognamodule/beschreibung/anzeigen.html?nummer={number}&version={version}&sprache=1"

const (
	numberPlaceholder  = "{number}"
	versionPlaceholder = "{version}"
)

// URLTemplate builds detail URLs from a template string.
type URLTemplate struct {
	raw string
}

// NewURLTemplate validates that both placeholders are present. An empty
// template selects DefaultURLTemplate.
func NewURLTemplate(raw string) (URLTemplate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = DefaultURLTemplate
	}
	if !strings.Contains(raw, numberPlaceholder) || !strings.Contains(raw, versionPlaceholder) {
		return URLTemplate{}, fmt.Errorf("url template must contain %s and %s", numberPlaceholder, versionPlaceholder)
	}
	return URLTemplate{raw: raw}, nil
}

// Build substitutes number and version.
func (t URLTemplate) Build(number, version int) string {
	raw := t.raw
	if raw == "" {
		raw = DefaultURLTemplate
	}
	return strings.NewReplacer(
		numberPlaceholder, strconv.Itoa(number),
		versionPlaceholder, strconv.Itoa(version),
	).Replace(raw)
}

// String returns the raw template.
func (t URLTemplate) String() string {
	return t.raw
}
