package scraper

// ModuleRef identifies one module version to scrape.
type ModuleRef struct {
	Number  int
	Version int
	Title   string
	URL     string
}

// ScrapedModule is the aggregate read from one detail page. Only the
// identifiers are guaranteed; empty strings and nil pointers mean "absent".
type ScrapedModule struct {
	Number  int
	Version int
	URL     string

	Title     string
	Credits   *int
	Languages []string

	ValidSince string
	ValidUntil string

	Faculty           string
	Institute         string
	Fachgebiet        string
	ExaminationBoard  string
	ResponsiblePerson string

	Contact Contact

	LearningResult      string
	Content             string
	TeachingInformation string
	Requirements        string
	Registration        string
	Duration            string
	AdditionalInfo      string
	MaxAttendees        *int

	Components []Component
	Workload   []WorkloadLine
	Usages     []CatalogUsage
	Exam       *Exam
}

// Contact holds the contact block of a module page.
type Contact struct {
	Secretariat   string
	ContactPerson string
	Email         string
	Website       string
}

// Empty reports whether no contact field was found.
func (c Contact) Empty() bool {
	return c.Secretariat == "" && c.ContactPerson == "" && c.Email == "" && c.Website == ""
}

// Component is one course (lecture, exercise, ...) belonging to a module.
type Component struct {
	Name     string
	Type     string
	Number   string
	Rotation string
	Language string
	SWS      int
}

// WorkloadLine is one row of the workload distribution table.
type WorkloadLine struct {
	Description string
	Factor      *float64
	Hours       *float64
	Total       float64
}

// CatalogUsage links a module to a study program regulation.
type CatalogUsage struct {
	Program     string
	ProgramLink string
	Stupo       string
	StupoLink   string
	FirstUsage  string
	LastUsage   string
}

// Exam describes how the module is completed.
type Exam struct {
	Graded      bool
	Type        string
	Language    string
	Duration    string
	Description string
	Clef        string
	Components  []ExamComponent
}

// ExamComponent is one graded element of an exam.
type ExamComponent struct {
	Name     string
	Points   int
	Category string
	Scope    string
}

// Semester is the term half a validity period starts or ends in.
type Semester string

// Supported semesters.
const (
	SemesterSummer Semester = "SoSe"
	SemesterWinter Semester = "WiSe"
)

// Validity is a parsed (semester, year) pair.
type Validity struct {
	Semester Semester
	Year     int
}

// Rotation is how often a component is offered.
type Rotation string

// Rotation values. RotationUnknown is stored as NULL.
const (
	RotationUnknown Rotation = "unknown"
	RotationWinter  Rotation = "WiSe"
	RotationSummer  Rotation = "SoSe"
	RotationBoth    Rotation = "WiSe/SoSe"
)

// ExamCategory classifies an exam component.
type ExamCategory string

// Exam categories. ExamUnknown is stored as NULL.
const (
	ExamUnknown   ExamCategory = "unknown"
	ExamOral      ExamCategory = "Oral"
	ExamWritten   ExamCategory = "Written"
	ExamPractical ExamCategory = "Praktisch"
)

// ModuleSnapshot is the full row graph of one module observed in one run.
type ModuleSnapshot struct {
	Module     ModuleRow
	Contact    *ContactRow
	Components []ComponentRow
	Workload   []WorkloadRow
	Usages     []UsageRow
	Exam       *ExamRow
}

// ModuleRow is keyed by (ID, Version, RunID).
type ModuleRow struct {
	ID      int
	Version int
	RunID   int64

	ValidSince *Validity
	ValidUntil *Validity
	Languages  []string
	Title      string
	Credits    *int

	FacultyID          int64
	InstituteID        int64
	FachgebietID       int64
	ResponsibleID      int64
	ExaminationBoardID int64

	LearningResult      *string
	Content             *string
	TeachingInformation *string
	MaxAttendees        *int
	Registration        *string
	Duration            *string
	Requirements        *string
	AdditionalInfo      *string
	MosesLink           string
}

// ContactRow is the optional contact child row.
type ContactRow struct {
	Secretariat   *string
	ContactPerson *string
	Email         *string
	Website       *string
}

// ComponentRow is a module_component child row.
type ComponentRow struct {
	Name     string
	Type     string
	Number   string
	Rotation Rotation
	SWS      int
	Language string
}

// WorkloadRow is a module_workload_distribution child row.
type WorkloadRow struct {
	Description string
	Factor      float64
	Hours       float64
	Total       float64
}

// UsageRow is a module_catalog_usage child row.
type UsageRow struct {
	StupoID    int64
	FirstUsage *string
	LastUsage  *string
}

// ExamRow is the optional exam child row with its components.
type ExamRow struct {
	Graded      bool
	Type        string
	Language    *string
	Duration    *string
	Clef        *string
	Description *string
	Components  []ExamComponentRow
}

// ExamComponentRow is one exam_component row.
type ExamComponentRow struct {
	Name     string
	Points   int
	Category ExamCategory
	Scope    *string
}

// Tally is the aggregate outcome of a run.
type Tally struct {
	Completed  int
	Successful int
	Failed     int
	Skipped    int
}
