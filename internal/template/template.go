// Package template computes the column layout shared by the header and every
// data line of a study or assay file.
package template

import "isatab/pkg/isa"

// Family names a group of columns unified together.
type Family string

const (
	Characteristics       Family = "characteristics"
	Protocols             Family = "protocols"
	Parameters            Family = "parameters"
	Factors               Family = "factors"
	Comments              Family = "comments"
	SampleCharacteristics Family = "sample characteristics"
	DataFiles             Family = "data files"
)

// Column is one logical column. Annotated and Unit widen it with the
// Term Source REF / Term Accession Number and Unit sub-columns; both are
// fixed for the whole file.
type Column struct {
	ID        string `msgpack:"id"`
	Annotated bool   `msgpack:"annotated,omitempty"`
	Unit      bool   `msgpack:"unit,omitempty"`
}

// Template is an ordered column list. Protocol columns carry two children,
// the parameter template then the characteristic template.
type Template struct {
	Family   Family                `msgpack:"family"`
	Columns  []Column              `msgpack:"columns"`
	Children map[string][]*Template `msgpack:"children,omitempty"`
}

// IDs returns the column identifiers in order.
func (t *Template) IDs() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.ID
	}
	return out
}

// Child returns the nested template of the given family under column id.
func (t *Template) Child(id string, family Family) *Template {
	if t == nil {
		return nil
	}
	for _, c := range t.Children[id] {
		if c.Family == family {
			return c
		}
	}
	return nil
}

// Kind distinguishes study tables from assay tables.
type Kind int

const (
	StudyFile Kind = iota
	AssayFile
)

func (k Kind) String() string {
	if k == AssayFile {
		return "assay"
	}
	return "study"
}

// File is the full layout of one study or assay file.
type File struct {
	Kind                  Kind
	Lead                  string
	Trail                 string
	Characteristics       *Template
	Protocols             *Template
	Factors               *Template
	Comments              *Template
	SampleCharacteristics *Template
	DataFiles             *Template

	protocols map[string]*isa.Protocol
	factors   map[string]*isa.Factor
}

// Labels returns the lead and trail column labels for a file kind.
func Labels(kind Kind) (lead, trail string) {
	if kind == AssayFile {
		return "Sample Name", "Assay Name"
	}
	return "Source Name", "Sample Name"
}

// Summary is what the investigation file needs from a study or assay file.
type Summary struct {
	Protocols []ProtocolSummary
	Factors   []*isa.Factor
}

// ProtocolSummary pairs a protocol definition with the parameter names the
// rows used, in template order.
type ProtocolSummary struct {
	Protocol   *isa.Protocol
	Parameters []string
}

// Summary lists the file's protocols and factors in column order.
func (f *File) Summary() Summary {
	var s Summary
	for _, c := range f.Protocols.Columns {
		s.Protocols = append(s.Protocols, ProtocolSummary{
			Protocol:   f.protocols[c.ID],
			Parameters: f.Protocols.Child(c.ID, Parameters).IDs(),
		})
	}
	for _, c := range f.Factors.Columns {
		s.Factors = append(s.Factors, f.factors[c.ID])
	}
	return s
}

// Merge returns the union of summaries in order, keeping the first
// occurrence of each protocol or factor name. Parameter names of repeated
// protocols are merged the same way.
func Merge(summaries ...Summary) Summary {
	var out Summary
	protoAt := make(map[string]int)
	factorSeen := make(map[string]struct{})
	for _, s := range summaries {
		for _, p := range s.Protocols {
			if p.Protocol == nil {
				continue
			}
			i, ok := protoAt[p.Protocol.Name]
			if !ok {
				protoAt[p.Protocol.Name] = len(out.Protocols)
				out.Protocols = append(out.Protocols, ProtocolSummary{
					Protocol:   p.Protocol,
					Parameters: appendUnique(nil, p.Parameters),
				})
				continue
			}
			out.Protocols[i].Parameters = appendUnique(out.Protocols[i].Parameters, p.Parameters)
		}
		for _, f := range s.Factors {
			if f == nil {
				continue
			}
			if _, ok := factorSeen[f.Name]; ok {
				continue
			}
			factorSeen[f.Name] = struct{}{}
			out.Factors = append(out.Factors, f)
		}
	}
	return out
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
