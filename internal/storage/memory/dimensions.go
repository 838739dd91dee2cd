// Package memory keeps scraping runs, dimensions, module snapshots and pages
// in process memory. It backs dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Dimensions implements mapper.DimensionResolver with per-kind name maps.
type Dimensions struct {
	mu     sync.Mutex
	next   int64
	ids    map[string]int64
	links  map[string]string
	fgByID map[int64]int64
}

// NewDimensions builds an empty resolver.
func NewDimensions() *Dimensions {
	return &Dimensions{
		ids:    make(map[string]int64),
		links:  make(map[string]string),
		fgByID: make(map[int64]int64),
	}
}

func (d *Dimensions) resolve(kind, name string) int64 {
	key := kind + "\x00" + name
	if id, ok := d.ids[key]; ok {
		return id
	}
	d.next++
	d.ids[key] = d.next
	return d.next
}

func (d *Dimensions) simple(ctx context.Context, kind, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolve(kind, name), nil
}

// Faculty resolves a faculty id by name.
func (d *Dimensions) Faculty(ctx context.Context, name string) (int64, error) {
	return d.simple(ctx, "faculty", name)
}

// Institute resolves an institute id by name.
func (d *Dimensions) Institute(ctx context.Context, name string) (int64, error) {
	return d.simple(ctx, "institute", name)
}

// Fachgebiet resolves a fachgebiet id by name.
func (d *Dimensions) Fachgebiet(ctx context.Context, name string) (int64, error) {
	return d.simple(ctx, "fachgebiet", name)
}

// ExaminationBoard resolves an examination board id by name.
func (d *Dimensions) ExaminationBoard(ctx context.Context, name string) (int64, error) {
	return d.simple(ctx, "examination_board", name)
}

// ResponsiblePerson resolves a person by name and records their fachgebiet.
func (d *Dimensions) ResponsiblePerson(ctx context.Context, name string, fachgebietID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.resolve("responsible_person", name)
	d.fgByID[id] = fachgebietID
	return id, nil
}

// StudyProgram resolves a study program by name, refreshing its link.
func (d *Dimensions) StudyProgram(ctx context.Context, name, link string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	key := "study_program\x00" + name
	d.links[key] = link
	return d.resolve("study_program", name), nil
}

// Stupo resolves a study regulation within a study program.
func (d *Dimensions) Stupo(ctx context.Context, studyProgramID int64, name, link string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	scoped := fmt.Sprintf("%d/%s", studyProgramID, name)
	d.links["stupo\x00"+scoped] = link
	return d.resolve("stupo", scoped), nil
}

// Len returns how many distinct entities of kind exist.
func (d *Dimensions) Len(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	prefix := kind + "\x00"
	n := 0
	for key := range d.ids {
		if strings.HasPrefix(key, prefix) {
			n++
		}
	}
	return n
}
