// Package catalog reads the module list export and turns each row into a
// scraper.ModuleRef with its detail URL.
package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

// Header is the exact column layout of the module list export.
var Header = []string{
	"Nummer/Version",
	"Modultitel",
	"Sprache(n)",
	"LP",
	"Benotung",
	"Verantwortliche Person",
	"Zugehörigkeit",
}

const (
	colIdentifier = 0
	colTitle      = 1

	utf8BOM = "\ufeff"
)

// ErrHeaderMismatch is returned when the first row is not Header.
var ErrHeaderMismatch = errors.New("unexpected csv header")

// Options tune a load.
type Options struct {
	// Limit truncates the result to the first Limit valid rows; 0 keeps all.
	Limit int
}

// Result is the outcome of reading one file.
type Result struct {
	Refs    []scraper.ModuleRef
	Total   int
	Valid   int
	Invalid int
}

// Loader parses module lists.
type Loader struct {
	template URLTemplate
	logger   *zap.Logger
}

// NewLoader wires a URL template and logger.
func NewLoader(template URLTemplate, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{template: template, logger: logger}
}

// LoadFile opens path and calls Load.
func (l *Loader) LoadFile(path string, opts Options) (Result, error) {
	f, err := os.Open(path) // #nosec G304 -- path is an operator supplied input file.
	if err != nil {
		return Result{}, fmt.Errorf("open module list: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.logger.Warn("close module list failed", zap.Error(closeErr))
		}
	}()
	return l.Load(f, opts)
}

// Load reads every data row. Rows whose identifier cannot be parsed are
// counted as invalid and skipped.
func (l *Loader) Load(r io.Reader, opts Options) (Result, error) {
	reader := newReader(r)
	if err := readHeader(reader); err != nil {
		return Result{}, err
	}

	var res Result
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				res.Total++
				res.Invalid++
				l.logger.Debug("skipping malformed csv row", zap.Error(err))
				continue
			}
			return Result{}, fmt.Errorf("read module list: %w", err)
		}
		if blankRecord(record) {
			continue
		}
		res.Total++
		ref, ok := l.toRef(record)
		if !ok {
			res.Invalid++
			continue
		}
		res.Valid++
		if opts.Limit > 0 && len(res.Refs) >= opts.Limit {
			continue
		}
		res.Refs = append(res.Refs, ref)
	}
	l.logger.Info("module list loaded",
		zap.Int("total", res.Total),
		zap.Int("valid", res.Valid),
		zap.Int("invalid", res.Invalid),
		zap.Int("selected", len(res.Refs)),
	)
	return res, nil
}

// Validate counts rows without building references.
func (l *Loader) Validate(r io.Reader) (Result, error) {
	res, err := l.Load(r, Options{})
	if err != nil {
		return Result{}, err
	}
	res.Refs = nil
	return res, nil
}

func (l *Loader) toRef(record []string) (scraper.ModuleRef, bool) {
	if len(record) <= colIdentifier {
		return scraper.ModuleRef{}, false
	}
	number, version, err := ParseIdentifier(record[colIdentifier])
	if err != nil {
		l.logger.Debug("skipping row", zap.String("identifier", record[colIdentifier]), zap.Error(err))
		return scraper.ModuleRef{}, false
	}
	var title string
	if len(record) > colTitle {
		title = strings.TrimSpace(record[colTitle])
	}
	return scraper.ModuleRef{
		Number:  number,
		Version: version,
		Title:   title,
		URL:     l.template.Build(number, version),
	}, true
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

func readHeader(reader *csv.Reader) error {
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty file", ErrHeaderMismatch)
		}
		return fmt.Errorf("read csv header: %w", err)
	}
	if len(header) != len(Header) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrHeaderMismatch, len(header), len(Header))
	}
	for i, want := range Header {
		if got := strings.TrimSpace(header[i]); got != want {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrHeaderMismatch, i+1, got, want)
		}
	}
	return nil
}

func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
