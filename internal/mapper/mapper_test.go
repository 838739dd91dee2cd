package mapper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

type fakeDims struct {
	mu     sync.Mutex
	ids    map[string]int64
	next   int64
	failOn map[string]error
	calls  []string
}

func newFakeDims() *fakeDims {
	return &fakeDims{ids: map[string]int64{}, failOn: map[string]error{}}
}

func (f *fakeDims) resolve(key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if err, ok := f.failOn[key]; ok {
		return 0, err
	}
	if id, ok := f.ids[key]; ok {
		return id, nil
	}
	f.next++
	f.ids[key] = f.next
	return f.next, nil
}

func (f *fakeDims) Faculty(_ context.Context, name string) (int64, error) {
	return f.resolve("faculty:" + name)
}

func (f *fakeDims) Institute(_ context.Context, name string) (int64, error) {
	return f.resolve("institute:" + name)
}

func (f *fakeDims) Fachgebiet(_ context.Context, name string) (int64, error) {
	return f.resolve("fachgebiet:" + name)
}

func (f *fakeDims) ExaminationBoard(_ context.Context, name string) (int64, error) {
	return f.resolve("board:" + name)
}

func (f *fakeDims) ResponsiblePerson(_ context.Context, name string, fgID int64) (int64, error) {
	return f.resolve(fmt.Sprintf("person:%s:%d", name, fgID))
}

func (f *fakeDims) StudyProgram(_ context.Context, name, link string) (int64, error) {
	return f.resolve("program:" + name + "|" + link)
}

func (f *fakeDims) Stupo(_ context.Context, programID int64, name, link string) (int64, error) {
	return f.resolve(fmt.Sprintf("stupo:%d:%s|%s", programID, name, link))
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func sampleModule() *scraper.ScrapedModule {
	return &scraper.ScrapedModule{
		Number:            40123,
		Version:           3,
		URL:               "https://moses.example/x?nummer=40123&version=3",
		Title:             "Datenbanksysteme",
		Credits:           intPtr(6),
		ValidSince:        "WiSe 2018/19",
		ValidUntil:        "garbage",
		Faculty:           "Fakultät IV",
		Fachgebiet:        "DIMA",
		ResponsiblePerson: "Markl, Volker",
		Contact:           scraper.Contact{Email: "sekr@example.test"},
		Content:           "SQL",
		Components: []scraper.Component{
			{Name: "DBS", Type: "ÜE", Number: "1", Rotation: "WiSe", SWS: 2},
			{Name: "kaputt", Type: " "},
			{Name: "Projekt", Type: "pj", Rotation: "irgendwann", Language: "en"},
		},
		Workload: []scraper.WorkloadLine{
			{Description: "Präsenz", Factor: floatPtr(15), Hours: floatPtr(4), Total: 60},
			{Description: "Prüfung", Total: 10},
		},
		Usages: []scraper.CatalogUsage{
			{Program: "Informatik", ProgramLink: "https://example.test/inf", Stupo: "StuPO 2015", FirstUsage: "WiSe 2015/16"},
			{Program: "Kaputt"},
			{Program: ""},
		},
		Exam: &scraper.Exam{
			Graded: true,
			Type:   "Portfolioprüfung",
			Components: []scraper.ExamComponent{
				{Name: "Test", Points: 40, Category: "schriftlich", Scope: "60 Minuten"},
				{Name: "Referat", Points: 60, Category: "Vortrag"},
			},
		},
	}
}

func TestMapBuildsSnapshot(t *testing.T) {
	t.Parallel()

	dims := newFakeDims()
	dims.failOn["program:Kaputt|"+DefaultLink] = errors.New("boom")

	snap, err := New(dims).Map(context.Background(), 9, sampleModule())
	require.NoError(t, err)

	mod := snap.Module
	require.Equal(t, 40123, mod.ID)
	require.Equal(t, 3, mod.Version)
	require.Equal(t, int64(9), mod.RunID)
	require.Equal(t, &scraper.Validity{Semester: scraper.SemesterWinter, Year: 2018}, mod.ValidSince)
	require.Nil(t, mod.ValidUntil)
	require.Equal(t, []string{"de"}, mod.Languages)
	require.Equal(t, "https://moses.example/x?nummer=40123&version=3", mod.MosesLink)
	require.NotNil(t, mod.Content)
	require.Equal(t, "SQL", *mod.Content)
	require.Nil(t, mod.LearningResult)
	require.Equal(t, dims.ids["faculty:Fakultät IV"], mod.FacultyID)
	require.Equal(t, dims.ids["institute:"+UnknownName], mod.InstituteID)
	require.Equal(t, dims.ids[fmt.Sprintf("person:Markl, Volker:%d", mod.FachgebietID)], mod.ResponsibleID)

	require.NotNil(t, snap.Contact)
	require.Nil(t, snap.Contact.Secretariat)
	require.Equal(t, "sekr@example.test", *snap.Contact.Email)

	require.Equal(t, []scraper.ComponentRow{
		{Name: "DBS", Type: "UE", Number: "1", Rotation: scraper.RotationWinter, SWS: 2, Language: "de"},
		{Name: "Projekt", Type: "PJ", Rotation: scraper.RotationUnknown, Language: "en"},
	}, snap.Components)

	require.Equal(t, []scraper.WorkloadRow{
		{Description: "Präsenz", Factor: 15, Hours: 4, Total: 60},
		{Description: "Prüfung", Factor: 1, Hours: 0, Total: 10},
	}, snap.Workload)

	require.Len(t, snap.Usages, 1)
	require.Equal(t, dims.ids[fmt.Sprintf("stupo:%d:StuPO 2015|%s", dims.ids["program:Informatik|https://example.test/inf"], DefaultLink)], snap.Usages[0].StupoID)
	require.Equal(t, "WiSe 2015/16", *snap.Usages[0].FirstUsage)
	require.Nil(t, snap.Usages[0].LastUsage)

	require.NotNil(t, snap.Exam)
	require.Equal(t, "Portfolioprüfung", snap.Exam.Type)
	require.Nil(t, snap.Exam.Language)
	require.Len(t, snap.Exam.Components, 2)
	require.Equal(t, scraper.ExamWritten, snap.Exam.Components[0].Category)
	require.Equal(t, "60 Minuten", *snap.Exam.Components[0].Scope)
	require.Equal(t, scraper.ExamUnknown, snap.Exam.Components[1].Category)
	require.Nil(t, snap.Exam.Components[1].Scope)
}

func TestMapLegacyDefaults(t *testing.T) {
	t.Parallel()

	snap, err := New(newFakeDims(), WithLegacyDefaults(true)).Map(context.Background(), 1, sampleModule())
	require.NoError(t, err)
	require.Equal(t, scraper.RotationSummer, snap.Components[1].Rotation)
	require.Equal(t, scraper.ExamWritten, snap.Exam.Components[1].Category)
}

func TestMapWithoutContactOrExam(t *testing.T) {
	t.Parallel()

	m := &scraper.ScrapedModule{Number: 1, Version: 1, Languages: []string{"en"}}
	snap, err := New(newFakeDims()).Map(context.Background(), 1, m)
	require.NoError(t, err)
	require.Nil(t, snap.Contact)
	require.Nil(t, snap.Exam)
	require.Empty(t, snap.Components)
	require.Equal(t, []string{"en"}, snap.Module.Languages)
}

func TestMapDimensionFailureFailsModule(t *testing.T) {
	t.Parallel()

	dims := newFakeDims()
	dims.failOn["faculty:"+UnknownName] = errors.New("db down")

	_, err := New(dims).Map(context.Background(), 1, &scraper.ScrapedModule{Number: 5, Version: 2})
	require.Error(t, err)
	require.Contains(t, err.Error(), "resolve faculty")
	require.Contains(t, err.Error(), "db down")
}

func TestMapReusesDimensionIDs(t *testing.T) {
	t.Parallel()

	dims := newFakeDims()
	mp := New(dims)
	a, err := mp.Map(context.Background(), 1, sampleModule())
	require.NoError(t, err)
	b, err := mp.Map(context.Background(), 2, sampleModule())
	require.NoError(t, err)

	require.Equal(t, a.Module.FacultyID, b.Module.FacultyID)
	require.Equal(t, a.Usages[0].StupoID, b.Usages[0].StupoID)
	require.NotEqual(t, a.Module.RunID, b.Module.RunID)
}

func TestMapNilModule(t *testing.T) {
	t.Parallel()

	_, err := New(newFakeDims()).Map(context.Background(), 1, nil)
	require.Error(t, err)
}
