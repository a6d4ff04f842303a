// Package manifest decodes a YAML description of an investigation into the
// isa object tree. It is the input format of the isatab command.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"isatab/pkg/isa"
)

// Document is the top-level YAML shape.
type Document struct {
	Identifier        string        `yaml:"identifier"`
	Title             string        `yaml:"title"`
	Description       string        `yaml:"description"`
	SubmissionDate    string        `yaml:"submission_date"`
	PublicReleaseDate string        `yaml:"public_release_date"`
	Ontologies        []Ontology    `yaml:"ontologies"`
	Publications      []Publication `yaml:"publications"`
	Contacts          []Person      `yaml:"contacts"`
	Comments          []Comment     `yaml:"comments"`
	Studies           []Study       `yaml:"studies"`
}

type Ontology struct {
	Name        string `yaml:"name"`
	File        string `yaml:"file"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

// Annotation references an ontology by name.
type Annotation struct {
	Term      string `yaml:"term"`
	Accession string `yaml:"accession"`
	Source    string `yaml:"source"`
}

type Comment struct {
	Name     string `yaml:"name"`
	Value    string `yaml:"value"`
	Position *int   `yaml:"position"`
}

type Publication struct {
	Title   string      `yaml:"title"`
	Authors string      `yaml:"authors"`
	DOI     string      `yaml:"doi"`
	PubMed  string      `yaml:"pubmed"`
	Status  *Annotation `yaml:"status"`
}

type Person struct {
	LastName    string       `yaml:"last_name"`
	FirstName   string       `yaml:"first_name"`
	MidInitials string       `yaml:"mid_initials"`
	Email       string       `yaml:"email"`
	Phone       string       `yaml:"phone"`
	Fax         string       `yaml:"fax"`
	Address     string       `yaml:"address"`
	Affiliation string       `yaml:"affiliation"`
	Roles       []Annotation `yaml:"roles"`
}

type Protocol struct {
	Name        string       `yaml:"name"`
	Type        *Annotation  `yaml:"type"`
	Description string       `yaml:"description"`
	URI         string       `yaml:"uri"`
	Version     string       `yaml:"version"`
	Parameters  []Annotation `yaml:"parameters"`
}

type Factor struct {
	Name string      `yaml:"name"`
	Type *Annotation `yaml:"type"`
}

type Study struct {
	Identifier        string        `yaml:"identifier"`
	File              string        `yaml:"file"`
	Title             string        `yaml:"title"`
	Description       string        `yaml:"description"`
	SubmissionDate    string        `yaml:"submission_date"`
	PublicReleaseDate string        `yaml:"public_release_date"`
	Continuation      bool          `yaml:"continuation"`
	Design            []Annotation  `yaml:"design_descriptors"`
	Publications      []Publication `yaml:"publications"`
	Contacts          []Person      `yaml:"contacts"`
	Comments          []Comment     `yaml:"comments"`
	Protocols         []Protocol    `yaml:"protocols"`
	Factors           []Factor      `yaml:"factors"`
	Rows              []Row         `yaml:"rows"`
	Assays            []Assay       `yaml:"assays"`
}

type Assay struct {
	File               string      `yaml:"file"`
	MeasurementType    *Annotation `yaml:"measurement_type"`
	TechnologyType     *Annotation `yaml:"technology_type"`
	TechnologyPlatform string      `yaml:"technology_platform"`
	Continuation       bool        `yaml:"continuation"`
	Comments           []Comment   `yaml:"comments"`
	Rows               []Row       `yaml:"rows"`
}

// Attribute is a characteristic, parameter value or factor value. Exactly
// one of Value, Number or Term is expected.
type Attribute struct {
	Name     string      `yaml:"name"`
	Value    string      `yaml:"value"`
	Number   *float64    `yaml:"number"`
	Term     *Annotation `yaml:"term"`
	Unit     *Annotation `yaml:"unit"`
	Position *int        `yaml:"position"`
}

type ProtocolRef struct {
	Ref             string      `yaml:"ref"`
	Position        *int        `yaml:"position"`
	Parameters      []Attribute `yaml:"parameters"`
	Characteristics []Attribute `yaml:"characteristics"`
}

type DataFile struct {
	Kind     string `yaml:"kind"`
	Name     string `yaml:"name"`
	Position *int   `yaml:"position"`
}

type Row struct {
	Name                  string        `yaml:"name"`
	Characteristics       []Attribute   `yaml:"characteristics"`
	Protocols             []ProtocolRef `yaml:"protocols"`
	Factors               []Attribute   `yaml:"factors"`
	Comments              []Comment     `yaml:"comments"`
	Sample                string        `yaml:"sample"`
	SampleCharacteristics []Attribute   `yaml:"sample_characteristics"`
	DataFiles             []DataFile    `yaml:"data_files"`
}

// Load reads and builds the manifest at path.
func Load(path string) (*isa.Investigation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f)
}

// Decode parses YAML from r and builds the investigation. Unknown fields are
// rejected.
func Decode(r io.Reader) (*isa.Investigation, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("manifest is empty")
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return doc.Build()
}

// Build converts the document into an isa tree.
func (d Document) Build() (*isa.Investigation, error) {
	inv, err := isa.NewInvestigation(d.Identifier, d.Title)
	if err != nil {
		return nil, err
	}
	b := &builder{ontologies: make(map[string]*isa.Ontology)}
	inv.Description = d.Description
	if inv.SubmissionDate, err = parseDate("submission_date", d.SubmissionDate); err != nil {
		return nil, err
	}
	if inv.PublicReleaseDate, err = parseDate("public_release_date", d.PublicReleaseDate); err != nil {
		return nil, err
	}
	for i, o := range d.Ontologies {
		ont, err := isa.NewOntology(o.Name, o.File, o.Version, o.Description)
		if err != nil {
			return nil, fmt.Errorf("ontologies[%d]: %w", i, err)
		}
		b.ontologies[o.Name] = ont
		inv.Ontologies = append(inv.Ontologies, ont)
	}
	if inv.Publications, err = b.publications("publications", d.Publications); err != nil {
		return nil, err
	}
	if inv.Contacts, err = b.people("contacts", d.Contacts); err != nil {
		return nil, err
	}
	if inv.Comments, err = comments("comments", d.Comments); err != nil {
		return nil, err
	}
	for i, s := range d.Studies {
		study, err := b.study(fmt.Sprintf("studies[%d]", i), s)
		if err != nil {
			return nil, err
		}
		if err := inv.AddStudy(study); err != nil {
			return nil, fmt.Errorf("studies[%d]: %w", i, err)
		}
	}
	return inv, nil
}

type builder struct {
	ontologies map[string]*isa.Ontology
	protocols  map[string]*isa.Protocol
	factors    map[string]*isa.Factor
}

func (b *builder) annotation(path string, a *Annotation) (*isa.OntologyAnnotation, error) {
	if a == nil {
		return nil, nil
	}
	var src *isa.Ontology
	if a.Source != "" {
		var ok bool
		if src, ok = b.ontologies[a.Source]; !ok {
			return nil, fmt.Errorf("%s: unknown ontology source %q", path, a.Source)
		}
	}
	return isa.NewAnnotation(a.Term, a.Accession, src), nil
}

func (b *builder) annotations(path string, as []Annotation) ([]isa.OntologyAnnotation, error) {
	out := make([]isa.OntologyAnnotation, 0, len(as))
	for i := range as {
		a, err := b.annotation(fmt.Sprintf("%s[%d]", path, i), &as[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (b *builder) unit(path string, a *Annotation) (*isa.Unit, error) {
	ann, err := b.annotation(path, a)
	if err != nil || ann == nil {
		return nil, err
	}
	return &isa.Unit{Term: *ann}, nil
}

func (b *builder) publications(path string, ps []Publication) ([]*isa.Publication, error) {
	var out []*isa.Publication
	for i, p := range ps {
		at := fmt.Sprintf("%s[%d]", path, i)
		pub, err := isa.NewPublication(p.Title, p.Authors, p.DOI, p.PubMed)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		if pub.Status, err = b.annotation(at+".status", p.Status); err != nil {
			return nil, err
		}
		out = append(out, pub)
	}
	return out, nil
}

func (b *builder) people(path string, ps []Person) ([]*isa.Person, error) {
	var out []*isa.Person
	for i, p := range ps {
		at := fmt.Sprintf("%s[%d]", path, i)
		person, err := isa.NewPerson(p.LastName, p.FirstName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		person.MidInitials = p.MidInitials
		person.Email = p.Email
		person.Phone = p.Phone
		person.Fax = p.Fax
		person.Address = p.Address
		person.Affiliation = p.Affiliation
		if person.Roles, err = b.annotations(at+".roles", p.Roles); err != nil {
			return nil, err
		}
		out = append(out, person)
	}
	return out, nil
}

func (b *builder) study(path string, s Study) (*isa.Study, error) {
	study, err := isa.NewStudy(s.Identifier, s.File)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	study.Title = s.Title
	study.Description = s.Description
	if s.Continuation {
		study.Segment = isa.SegmentContinuation
	}
	if study.SubmissionDate, err = parseDate(path+".submission_date", s.SubmissionDate); err != nil {
		return nil, err
	}
	if study.PublicReleaseDate, err = parseDate(path+".public_release_date", s.PublicReleaseDate); err != nil {
		return nil, err
	}
	design, err := b.annotations(path+".design_descriptors", s.Design)
	if err != nil {
		return nil, err
	}
	for _, d := range design {
		study.DesignDescriptors = append(study.DesignDescriptors, isa.DesignDescriptor{Type: d})
	}
	if study.Publications, err = b.publications(path+".publications", s.Publications); err != nil {
		return nil, err
	}
	if study.Contacts, err = b.people(path+".contacts", s.Contacts); err != nil {
		return nil, err
	}
	if study.Comments, err = comments(path+".comments", s.Comments); err != nil {
		return nil, err
	}

	b.protocols = make(map[string]*isa.Protocol)
	for i, p := range s.Protocols {
		at := fmt.Sprintf("%s.protocols[%d]", path, i)
		kind, err := b.annotation(at+".type", p.Type)
		if err != nil {
			return nil, err
		}
		proto, err := isa.NewProtocol(p.Name, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		proto.Description = p.Description
		proto.URI = p.URI
		proto.Version = p.Version
		if proto.Parameters, err = b.annotations(at+".parameters", p.Parameters); err != nil {
			return nil, err
		}
		b.protocols[p.Name] = proto
	}
	b.factors = make(map[string]*isa.Factor)
	for i, f := range s.Factors {
		at := fmt.Sprintf("%s.factors[%d]", path, i)
		kind, err := b.annotation(at+".type", f.Type)
		if err != nil {
			return nil, err
		}
		factor, err := isa.NewFactor(f.Name, kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
		b.factors[f.Name] = factor
	}

	for i, r := range s.Rows {
		at := fmt.Sprintf("%s.rows[%d]", path, i)
		row, err := b.row(at, r)
		if err != nil {
			return nil, err
		}
		if err := study.AddRow(row); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}
	for i, a := range s.Assays {
		at := fmt.Sprintf("%s.assays[%d]", path, i)
		assay, err := b.assay(at, a)
		if err != nil {
			return nil, err
		}
		if err := study.AddAssay(assay); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}
	return study, nil
}

func (b *builder) assay(path string, a Assay) (*isa.Assay, error) {
	assay, err := isa.NewAssay(a.File)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if a.Continuation {
		assay.Segment = isa.SegmentContinuation
	}
	assay.TechnologyPlatform = a.TechnologyPlatform
	if assay.MeasurementType, err = b.annotation(path+".measurement_type", a.MeasurementType); err != nil {
		return nil, err
	}
	if assay.TechnologyType, err = b.annotation(path+".technology_type", a.TechnologyType); err != nil {
		return nil, err
	}
	if assay.Comments, err = comments(path+".comments", a.Comments); err != nil {
		return nil, err
	}
	for i, r := range a.Rows {
		at := fmt.Sprintf("%s.rows[%d]", path, i)
		row, err := b.row(at, r)
		if err != nil {
			return nil, err
		}
		if err := assay.AddRow(row); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}
	return assay, nil
}

func (b *builder) row(path string, r Row) (isa.Row, error) {
	row := isa.Row{Name: r.Name, SampleName: r.Sample}
	var err error
	if row.Characteristics, err = b.characteristics(path+".characteristics", r.Characteristics); err != nil {
		return row, err
	}
	if row.SampleCharacteristics, err = b.characteristics(path+".sample_characteristics", r.SampleCharacteristics); err != nil {
		return row, err
	}
	for i, p := range r.Protocols {
		at := fmt.Sprintf("%s.protocols[%d]", path, i)
		proto, ok := b.protocols[p.Ref]
		if !ok {
			return row, fmt.Errorf("%s: unknown protocol %q", at, p.Ref)
		}
		app := isa.ProtocolApplication{Protocol: proto, Position: hint(p.Position)}
		for j, a := range p.Parameters {
			v, err := b.value(fmt.Sprintf("%s.parameters[%d]", at, j), a)
			if err != nil {
				return row, err
			}
			app.Parameters = append(app.Parameters, isa.ParameterValue(v))
		}
		if app.Characteristics, err = b.characteristics(at+".characteristics", p.Characteristics); err != nil {
			return row, err
		}
		row.Protocols = append(row.Protocols, app)
	}
	for i, a := range r.Factors {
		at := fmt.Sprintf("%s.factors[%d]", path, i)
		factor, ok := b.factors[a.Name]
		if !ok {
			return row, fmt.Errorf("%s: unknown factor %q", at, a.Name)
		}
		v, err := b.value(at, a)
		if err != nil {
			return row, err
		}
		row.Factors = append(row.Factors, isa.FactorValue{
			Factor: factor, Value: v.Value, Annotation: v.Annotation, Unit: v.Unit, Position: v.Position,
		})
	}
	if row.Comments, err = comments(path+".comments", r.Comments); err != nil {
		return row, err
	}
	for _, d := range r.DataFiles {
		row.DataFiles = append(row.DataFiles, isa.DataFile{Kind: d.Kind, Name: d.Name, Position: hint(d.Position)})
	}
	return row, nil
}

func (b *builder) characteristics(path string, as []Attribute) ([]isa.Characteristic, error) {
	var out []isa.Characteristic
	for i, a := range as {
		v, err := b.value(fmt.Sprintf("%s[%d]", path, i), a)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// value resolves an attribute into the shared characteristic shape; callers
// convert it to the parameter or factor form.
func (b *builder) value(path string, a Attribute) (isa.Characteristic, error) {
	c := isa.Characteristic{Name: a.Name, Value: a.Value, Position: hint(a.Position)}
	set := 0
	if a.Value != "" {
		set++
	}
	if a.Number != nil {
		set++
		c.Value = isa.FormatNumber(*a.Number)
	}
	if a.Term != nil {
		set++
		ann, err := b.annotation(path+".term", a.Term)
		if err != nil {
			return c, err
		}
		c.Annotation = ann
		c.Value = ann.Term
	}
	if set > 1 {
		return c, fmt.Errorf("%s: only one of value, number or term may be set", path)
	}
	unit, err := b.unit(path+".unit", a.Unit)
	if err != nil {
		return c, err
	}
	c.Unit = unit
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func comments(path string, cs []Comment) ([]isa.Comment, error) {
	var out []isa.Comment
	for i, c := range cs {
		cm, err := isa.NewComment(c.Name, c.Value)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		cm.Position = hint(c.Position)
		out = append(out, cm)
	}
	return out, nil
}

func hint(p *int) isa.Hint {
	if p == nil {
		return isa.Hint{}
	}
	return isa.At(*p)
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: expected YYYY-MM-DD, got %q", field, v)
}
