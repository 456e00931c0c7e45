package category

import (
	"errors"
	"path"
	"sort"
	"strings"
)

// Category identifies the kind of academic record an upload belongs to.
type Category string

const (
	ResearchPaper     Category = "ResearchPaper"
	Interaction       Category = "Interaction"
	Image             Category = "Image"
	Guidance          Category = "Guidance"
	SponsoredResearch Category = "SponsoredResearch"
	Consultancy       Category = "Consultancy"
	Placement         Category = "Placement"
	HigherEducation   Category = "HigherEducation"
	Entrepreneurship  Category = "Entrepreneurship"
	CurrentEducation  Category = "CurrentEducation"
	Extracurricular   Category = "Extracurricular"
	Society           Category = "Society"
	EventOrg          Category = "EventOrg"
	Publication       Category = "Publication"
	BulletinPost      Category = "BulletinPost"
)

// OwnerKind says whose namespace a category's files live under.
type OwnerKind string

const (
	OwnerFaculty    OwnerKind = "faculty"
	OwnerStudent    OwnerKind = "student"
	OwnerDepartment OwnerKind = "department"
)

// BodyField is the form/query field carrying the owner identifier for this kind.
func (k OwnerKind) BodyField() string {
	switch k {
	case OwnerFaculty:
		return "facultyId"
	case OwnerStudent:
		return "rollNo"
	default:
		return "departmentId"
	}
}

// SessionRole is the session role whose subject may stand in as the owner.
func (k OwnerKind) SessionRole() string {
	switch k {
	case OwnerFaculty:
		return "faculty"
	case OwnerStudent:
		return "student"
	default:
		return "dept_admin"
	}
}

const (
	MIMEPDF  = "application/pdf"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
)

const (
	mib = 1 << 20
)

var ErrUnknownCategory = errors.New("unknown upload category")

// Policy is the per-category upload configuration.
type Policy struct {
	Category         Category            `json:"category"`
	Slug             string              `json:"slug"`
	AllowedMimeTypes map[string]struct{} `json:"-"`
	MaxSizeBytes     int64               `json:"max_size_bytes"`
	FieldName        string              `json:"field_name"`
	OwnerKind        OwnerKind           `json:"owner_kind"`

	// DirectoryTemplate maps an already sanitized owner id to a path relative to the public root.
	DirectoryTemplate func(ownerID string) string `json:"-"`
}

// Allows reports whether the MIME type is in the category's allow-list.
func (p Policy) Allows(mimeType string) bool {
	_, ok := p.AllowedMimeTypes[normalizeMIME(mimeType)]
	return ok
}

// MimeTypes returns the allow-list sorted, for display.
func (p Policy) MimeTypes() []string {
	out := make([]string, 0, len(p.AllowedMimeTypes))
	for m := range p.AllowedMimeTypes {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func normalizeMIME(m string) string {
	m, _, _ = strings.Cut(m, ";")
	return strings.ToLower(strings.TrimSpace(m))
}

func mimeSet(types ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func under(parts ...string) func(string) string {
	return func(ownerID string) string {
		return path.Join(append(parts, ownerID)...)
	}
}

var (
	documentTypes = []string{MIMEPDF, MIMEJPEG, MIMEPNG}
	imageTypes    = []string{MIMEJPEG}
)

var table = []Policy{
	{Category: ResearchPaper, Slug: "research-paper", FieldName: "researchPaper", OwnerKind: OwnerFaculty, MaxSizeBytes: 20 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Faculty", "ResearchPapers")},
	{Category: Interaction, Slug: "interaction", FieldName: "interaction", OwnerKind: OwnerFaculty, MaxSizeBytes: 20 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Faculty", "Interactions")},
	{Category: Image, Slug: "image", FieldName: "image", OwnerKind: OwnerFaculty, MaxSizeBytes: 2 * mib,
		AllowedMimeTypes: mimeSet(imageTypes...), DirectoryTemplate: under("Faculty", "Images")},
	{Category: Guidance, Slug: "guidance", FieldName: "guidance", OwnerKind: OwnerFaculty, MaxSizeBytes: 20 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Faculty", "Guidance")},
	{Category: SponsoredResearch, Slug: "sponsored-research", FieldName: "sponsoredResearch", OwnerKind: OwnerFaculty, MaxSizeBytes: 20 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Faculty", "SponsoredResearch")},
	{Category: Consultancy, Slug: "consultancy", FieldName: "consultancy", OwnerKind: OwnerFaculty, MaxSizeBytes: 20 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Faculty", "Consultancy")},

	{Category: Placement, Slug: "placement", FieldName: "placement", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "Placements")},
	{Category: HigherEducation, Slug: "higher-education", FieldName: "higherEducation", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "HigherEducation")},
	{Category: Entrepreneurship, Slug: "entrepreneurship", FieldName: "entrepreneurship", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "Entrepreneurship")},
	{Category: CurrentEducation, Slug: "current-education", FieldName: "currentEducation", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "CurrentEducation")},
	{Category: Extracurricular, Slug: "extracurricular", FieldName: "extracurricular", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "Extracurricular")},
	{Category: Society, Slug: "society", FieldName: "society", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "Societies")},
	{Category: EventOrg, Slug: "event-org", FieldName: "eventOrg", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "EventsOrganized")},
	{Category: Publication, Slug: "publication", FieldName: "publication", OwnerKind: OwnerStudent, MaxSizeBytes: 10 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Student", "Publications")},

	{Category: BulletinPost, Slug: "bulletin-post", FieldName: "bulletinPost", OwnerKind: OwnerDepartment, MaxSizeBytes: 5 * mib,
		AllowedMimeTypes: mimeSet(documentTypes...), DirectoryTemplate: under("Department", "Bulletin")},
}

// All returns every category policy in table order.
func All() []Policy {
	out := make([]Policy, len(table))
	copy(out, table)
	return out
}

// Lookup finds a policy by route slug or category name, case-insensitively.
func Lookup(name string) (Policy, error) {
	name = strings.TrimSpace(name)
	for _, p := range table {
		if strings.EqualFold(p.Slug, name) || strings.EqualFold(string(p.Category), name) {
			return p, nil
		}
	}
	return Policy{}, ErrUnknownCategory
}
