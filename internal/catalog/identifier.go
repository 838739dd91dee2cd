package catalog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidIdentifier is returned for identifier cells that are not of the
// form "#<number> v<version>".
var ErrInvalidIdentifier = errors.New("invalid module identifier")

// ParseIdentifier reads a "Nummer/Version" cell such as "#50123 v5".
func ParseIdentifier(raw string) (number, version int, err error) {
	cell := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	tokens := strings.Fields(cell)
	if len(tokens) < 2 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
	}
	number, err = parseDigits(tokens[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: number %q", ErrInvalidIdentifier, tokens[0])
	}
	for _, tok := range tokens[1:] {
		if !strings.HasPrefix(tok, "v") {
			continue
		}
		version, err = parseDigits(strings.TrimPrefix(tok, "v"))
		if err != nil {
			return 0, 0, fmt.Errorf("%w: version %q", ErrInvalidIdentifier, tok)
		}
		return number, version, nil
	}
	return 0, 0, fmt.Errorf("%w: no version in %q", ErrInvalidIdentifier, raw)
}

// FormatIdentifier renders the canonical "#<number> v<version>" form.
func FormatIdentifier(number, version int) string {
	return fmt.Sprintf("#%d v%d", number, version)
}

func parseDigits(s string) (int, error) {
	if s == "" {
		return 0, errors.New("empty")
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parse int: %w", err)
	}
	return n, nil
}
