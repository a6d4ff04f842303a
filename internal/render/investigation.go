package render

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"isatab/internal/template"
	"isatab/pkg/isa"
)

// Lookup returns the merged column summary of a study and its assays. The
// investigation renderer calls it only when it reaches the study's FACTORS
// section, so it may block on other workers.
type Lookup func(ctx context.Context, s *isa.Study) (template.Summary, error)

// Investigation writes the investigation file for inv to w.
func (t Table) Investigation(ctx context.Context, w io.Writer, inv *isa.Investigation, lookup Lookup) error {
	sw := &sectionWriter{w: bufio.NewWriter(w), eol: t.eol()}
	writeOntologies(sw, inv.Ontologies)
	sw.label("INVESTIGATION")
	sw.field("Investigation Identifier", inv.Identifier)
	sw.field("Investigation Title", inv.Title)
	sw.field("Investigation Description", inv.Description)
	sw.field("Investigation Submission Date", date(inv.SubmissionDate))
	sw.field("Investigation Public Release Date", date(inv.PublicReleaseDate))
	sw.comments([][]isa.Comment{inv.Comments})
	sw.label("INVESTIGATION PUBLICATIONS")
	writePublications(sw, "Investigation", inv.Publications)
	sw.label("INVESTIGATION CONTACTS")
	writeContacts(sw, "Investigation", inv.Contacts)
	for _, s := range inv.Studies() {
		if s.Segment == isa.SegmentContinuation {
			continue
		}
		sw.label("STUDY")
		sw.field("Study Identifier", s.Identifier)
		sw.field("Study Title", s.Title)
		sw.field("Study Description", s.Description)
		sw.field("Study Submission Date", date(s.SubmissionDate))
		sw.field("Study Public Release Date", date(s.PublicReleaseDate))
		sw.field("Study File Name", s.FileName)
		sw.comments([][]isa.Comment{s.Comments})
		sw.label("STUDY DESIGN DESCRIPTORS")
		writeDesign(sw, s.DesignDescriptors)
		sw.label("STUDY PUBLICATIONS")
		writePublications(sw, "Study", s.Publications)
		// Everything above is independent of the tables; flush it before
		// waiting on the study and assay workers.
		if err := sw.flush(); err != nil {
			return err
		}
		summary, err := lookup(ctx, s)
		if err != nil {
			return err
		}
		sw.label("STUDY FACTORS")
		writeFactors(sw, summary.Factors)
		sw.label("STUDY ASSAYS")
		writeAssays(sw, s.Assays())
		sw.label("STUDY PROTOCOLS")
		writeProtocols(sw, summary.Protocols)
		sw.label("STUDY CONTACTS")
		writeContacts(sw, "Study", s.Contacts)
	}
	return sw.flush()
}

type sectionWriter struct {
	w   *bufio.Writer
	eol string
	err error
}

func (s *sectionWriter) write(fields ...string) {
	if s.err != nil {
		return
	}
	for i, f := range fields {
		fields[i] = clean(f)
	}
	_, s.err = s.w.WriteString(strings.Join(fields, fieldSep) + s.eol)
}

func (s *sectionWriter) label(name string) { s.write(name) }

func (s *sectionWriter) field(name string, values ...string) {
	s.write(append([]string{name}, values...)...)
}

// comments writes one Comment[...] line per comment name used by any item,
// names in first-seen order, one cell per item.
func (s *sectionWriter) comments(items [][]isa.Comment) {
	var names []string
	seen := make(map[string]struct{})
	for _, cs := range items {
		for _, c := range cs {
			if _, ok := seen[c.Name]; !ok {
				seen[c.Name] = struct{}{}
				names = append(names, c.Name)
			}
		}
	}
	for _, name := range names {
		cells := make([]string, len(items))
		for i, cs := range items {
			var vals []string
			for _, c := range cs {
				if c.Name == name {
					vals = append(vals, c.Value)
				}
			}
			cells[i] = strings.Join(vals, valueSep)
		}
		s.field("Comment["+name+"]", cells...)
	}
}

func (s *sectionWriter) flush() error {
	if s.err != nil {
		return s.err
	}
	return s.w.Flush()
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func collect[T, R any](items []T, fn func(T) R) []R {
	out := make([]R, len(items))
	for i, it := range items {
		out[i] = fn(it)
	}
	return out
}

func writeOntologies(sw *sectionWriter, os []*isa.Ontology) {
	sw.label("ONTOLOGY SOURCE REFERENCE")
	sw.field("Term Source Name", collect(os, func(o *isa.Ontology) string { return o.Name })...)
	sw.field("Term Source File", collect(os, func(o *isa.Ontology) string { return o.File })...)
	sw.field("Term Source Version", collect(os, func(o *isa.Ontology) string { return o.Version })...)
	sw.field("Term Source Description", collect(os, func(o *isa.Ontology) string { return o.Description })...)
	sw.comments(collect(os, func(o *isa.Ontology) []isa.Comment { return o.Comments }))
}

func writePublications(sw *sectionWriter, prefix string, ps []*isa.Publication) {
	sw.field(prefix+" PubMed ID", collect(ps, func(p *isa.Publication) string { return p.PubMedID })...)
	sw.field(prefix+" Publication DOI", collect(ps, func(p *isa.Publication) string { return p.DOI })...)
	sw.field(prefix+" Publication Author List", collect(ps, func(p *isa.Publication) string { return p.AuthorList })...)
	sw.field(prefix+" Publication Title", collect(ps, func(p *isa.Publication) string { return p.Title })...)
	sw.field(prefix+" Publication Status", collect(ps, func(p *isa.Publication) string { return p.Status.TermOrEmpty() })...)
	sw.field(prefix+" Publication Status Term Accession Number", collect(ps, func(p *isa.Publication) string { return p.Status.AccessionOrEmpty() })...)
	sw.field(prefix+" Publication Status Term Source REF", collect(ps, func(p *isa.Publication) string { return p.Status.SourceName() })...)
	sw.comments(collect(ps, func(p *isa.Publication) []isa.Comment { return p.Comments }))
}

func writeContacts(sw *sectionWriter, prefix string, ps []*isa.Person) {
	p := prefix + " Person "
	sw.field(p+"Last Name", collect(ps, func(x *isa.Person) string { return x.LastName })...)
	sw.field(p+"First Name", collect(ps, func(x *isa.Person) string { return x.FirstName })...)
	sw.field(p+"Mid Initials", collect(ps, func(x *isa.Person) string { return x.MidInitials })...)
	sw.field(p+"Email", collect(ps, func(x *isa.Person) string { return x.Email })...)
	sw.field(p+"Phone", collect(ps, func(x *isa.Person) string { return x.Phone })...)
	sw.field(p+"Fax", collect(ps, func(x *isa.Person) string { return x.Fax })...)
	sw.field(p+"Address", collect(ps, func(x *isa.Person) string { return x.Address })...)
	sw.field(p+"Affiliation", collect(ps, func(x *isa.Person) string { return x.Affiliation })...)
	sw.field(p+"Roles", collect(ps, func(x *isa.Person) string { return joinTerms(x.Roles, termOf) })...)
	sw.field(p+"Roles Term Accession Number", collect(ps, func(x *isa.Person) string { return joinTerms(x.Roles, accessionOf) })...)
	sw.field(p+"Roles Term Source REF", collect(ps, func(x *isa.Person) string { return joinTerms(x.Roles, sourceOf) })...)
	sw.comments(collect(ps, func(x *isa.Person) []isa.Comment { return x.Comments }))
}

func writeDesign(sw *sectionWriter, ds []isa.DesignDescriptor) {
	sw.field("Study Design Type", collect(ds, func(d isa.DesignDescriptor) string { return d.Type.Term })...)
	sw.field("Study Design Type Term Accession Number", collect(ds, func(d isa.DesignDescriptor) string { return d.Type.Accession })...)
	sw.field("Study Design Type Term Source REF", collect(ds, func(d isa.DesignDescriptor) string { return d.Type.SourceName() })...)
	sw.comments(collect(ds, func(d isa.DesignDescriptor) []isa.Comment { return d.Comments }))
}

func writeFactors(sw *sectionWriter, fs []*isa.Factor) {
	sw.field("Study Factor Name", collect(fs, func(f *isa.Factor) string { return f.Name })...)
	sw.field("Study Factor Type", collect(fs, func(f *isa.Factor) string { return f.Type.TermOrEmpty() })...)
	sw.field("Study Factor Type Term Accession Number", collect(fs, func(f *isa.Factor) string { return f.Type.AccessionOrEmpty() })...)
	sw.field("Study Factor Type Term Source REF", collect(fs, func(f *isa.Factor) string { return f.Type.SourceName() })...)
	sw.comments(collect(fs, func(f *isa.Factor) []isa.Comment { return f.Comments }))
}

func writeAssays(sw *sectionWriter, as []*isa.Assay) {
	sw.field("Study Assay File Name", collect(as, func(a *isa.Assay) string { return a.FileName })...)
	sw.field("Study Assay Measurement Type", collect(as, func(a *isa.Assay) string { return a.MeasurementType.TermOrEmpty() })...)
	sw.field("Study Assay Measurement Type Term Accession Number", collect(as, func(a *isa.Assay) string { return a.MeasurementType.AccessionOrEmpty() })...)
	sw.field("Study Assay Measurement Type Term Source REF", collect(as, func(a *isa.Assay) string { return a.MeasurementType.SourceName() })...)
	sw.field("Study Assay Technology Type", collect(as, func(a *isa.Assay) string { return a.TechnologyType.TermOrEmpty() })...)
	sw.field("Study Assay Technology Type Term Accession Number", collect(as, func(a *isa.Assay) string { return a.TechnologyType.AccessionOrEmpty() })...)
	sw.field("Study Assay Technology Type Term Source REF", collect(as, func(a *isa.Assay) string { return a.TechnologyType.SourceName() })...)
	sw.field("Study Assay Technology Platform", collect(as, func(a *isa.Assay) string { return a.TechnologyPlatform })...)
	sw.comments(collect(as, func(a *isa.Assay) []isa.Comment { return a.Comments }))
}

func writeProtocols(sw *sectionWriter, ps []template.ProtocolSummary) {
	sw.field("Study Protocol Name", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.Name })...)
	sw.field("Study Protocol Type", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.Type.TermOrEmpty() })...)
	sw.field("Study Protocol Type Term Accession Number", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.Type.AccessionOrEmpty() })...)
	sw.field("Study Protocol Type Term Source REF", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.Type.SourceName() })...)
	sw.field("Study Protocol Description", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.Description })...)
	sw.field("Study Protocol URI", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.URI })...)
	sw.field("Study Protocol Version", collect(ps, func(p template.ProtocolSummary) string { return p.Protocol.Version })...)
	params := collect(ps, parameters)
	sw.field("Study Protocol Parameters Name", collect(params, func(as []isa.OntologyAnnotation) string { return joinTerms(as, termOf) })...)
	sw.field("Study Protocol Parameters Name Term Accession Number", collect(params, func(as []isa.OntologyAnnotation) string { return joinTerms(as, accessionOf) })...)
	sw.field("Study Protocol Parameters Name Term Source REF", collect(params, func(as []isa.OntologyAnnotation) string { return joinTerms(as, sourceOf) })...)
	sw.field("Study Protocol Components Name", collect(ps, func(p template.ProtocolSummary) string {
		return strings.Join(collect(p.Protocol.Components, func(c isa.ProtocolComponent) string { return c.Name }), valueSep)
	})...)
	components := collect(ps, func(p template.ProtocolSummary) []isa.OntologyAnnotation {
		return collect(p.Protocol.Components, func(c isa.ProtocolComponent) isa.OntologyAnnotation {
			if c.Type == nil {
				return isa.OntologyAnnotation{}
			}
			return *c.Type
		})
	})
	sw.field("Study Protocol Components Type", collect(components, func(as []isa.OntologyAnnotation) string { return joinTerms(as, termOf) })...)
	sw.field("Study Protocol Components Type Term Accession Number", collect(components, func(as []isa.OntologyAnnotation) string { return joinTerms(as, accessionOf) })...)
	sw.field("Study Protocol Components Type Term Source REF", collect(components, func(as []isa.OntologyAnnotation) string { return joinTerms(as, sourceOf) })...)
	sw.comments(collect(ps, func(p template.ProtocolSummary) []isa.Comment { return p.Protocol.Comments }))
}

// parameters lists the declared parameters of a protocol followed by the
// parameters only seen in the tables.
func parameters(p template.ProtocolSummary) []isa.OntologyAnnotation {
	out := append([]isa.OntologyAnnotation(nil), p.Protocol.Parameters...)
	seen := make(map[string]struct{}, len(out))
	for _, a := range out {
		seen[a.Term] = struct{}{}
	}
	for _, name := range p.Parameters {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, isa.OntologyAnnotation{Term: name})
	}
	return out
}

func termOf(a isa.OntologyAnnotation) string      { return a.Term }
func accessionOf(a isa.OntologyAnnotation) string { return a.Accession }
func sourceOf(a isa.OntologyAnnotation) string    { return a.SourceName() }

func joinTerms(as []isa.OntologyAnnotation, fn func(isa.OntologyAnnotation) string) string {
	return strings.Join(collect(as, fn), valueSep)
}
