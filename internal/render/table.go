// Package render turns unified templates and rows into ISA-Tab lines and
// writes the sectioned investigation file.
package render

import (
	"runtime"
	"strings"

	"isatab/internal/template"
	"isatab/pkg/isa"
)

const (
	fieldSep = "\t"
	valueSep = ";"
)

// DefaultEOL is the platform line separator.
var DefaultEOL = func() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}()

// Table renders header and data lines. The zero value uses DefaultEOL.
type Table struct {
	EOL string
}

func (t Table) eol() string {
	if t.EOL == "" {
		return DefaultEOL
	}
	return t.EOL
}

// Header returns the header line for f.
func (t Table) Header(f *template.File) []byte {
	var fields []string
	fields = append(fields, f.Lead)
	fields = appendHeaders(fields, f.Characteristics, "Characteristics")
	for _, c := range f.Protocols.Columns {
		fields = append(fields, "Protocol REF")
		fields = appendHeaders(fields, f.Protocols.Child(c.ID, template.Parameters), "Parameter Value")
		fields = appendHeaders(fields, f.Protocols.Child(c.ID, template.Characteristics), "Characteristics")
	}
	fields = appendHeaders(fields, f.Factors, "Factor Value")
	for _, c := range f.Comments.Columns {
		fields = append(fields, "Comment["+c.ID+"]")
	}
	fields = append(fields, f.Trail)
	fields = appendHeaders(fields, f.SampleCharacteristics, "Characteristics")
	for _, c := range f.DataFiles.Columns {
		fields = append(fields, c.ID)
	}
	return t.line(fields)
}

// Row returns the data line for r under f. Attributes absent from r render
// as empty fields, so every line has as many fields as the header.
func (t Table) Row(f *template.File, r isa.Row) []byte {
	var fields []string
	fields = append(fields, clean(r.Name))
	fields = appendCharacteristics(fields, f.Characteristics, r.Characteristics)
	for _, c := range f.Protocols.Columns {
		params := f.Protocols.Child(c.ID, template.Parameters)
		chars := f.Protocols.Child(c.ID, template.Characteristics)
		app, ok := findProtocol(r.Protocols, c.ID)
		if !ok {
			fields = append(fields, "")
			fields = appendCharacteristics(fields, params, nil)
			fields = appendCharacteristics(fields, chars, nil)
			continue
		}
		fields = append(fields, clean(c.ID))
		fields = appendParameters(fields, params, app.Parameters)
		fields = appendCharacteristics(fields, chars, app.Characteristics)
	}
	for _, c := range f.Factors.Columns {
		v, ok := findFactor(r.Factors, c.ID)
		if !ok {
			fields = appendValue(fields, c, "", nil, nil)
			continue
		}
		fields = appendValue(fields, c, v.Value, v.Annotation, v.Unit)
	}
	for _, c := range f.Comments.Columns {
		var values []string
		for _, cm := range r.Comments {
			if cm.Name == c.ID {
				values = append(values, cm.Value)
			}
		}
		fields = append(fields, clean(strings.Join(values, valueSep)))
	}
	fields = append(fields, clean(r.SampleName))
	fields = appendCharacteristics(fields, f.SampleCharacteristics, r.SampleCharacteristics)
	for _, c := range f.DataFiles.Columns {
		var values []string
		for _, d := range r.DataFiles {
			if d.Kind == c.ID {
				values = append(values, d.Name)
			}
		}
		fields = append(fields, clean(strings.Join(values, valueSep)))
	}
	return t.line(fields)
}

func (t Table) line(fields []string) []byte {
	return []byte(strings.Join(fields, fieldSep) + t.eol())
}

func appendHeaders(fields []string, t *template.Template, label string) []string {
	if t == nil {
		return fields
	}
	for _, c := range t.Columns {
		fields = append(fields, label+"["+c.ID+"]")
		if c.Annotated {
			fields = append(fields, "Term Source REF", "Term Accession Number")
		}
		if c.Unit {
			fields = append(fields, "Unit", "Term Source REF", "Term Accession Number")
		}
	}
	return fields
}

func appendValue(fields []string, c template.Column, value string, a *isa.OntologyAnnotation, u *isa.Unit) []string {
	fields = append(fields, clean(value))
	if c.Annotated {
		fields = append(fields, clean(a.SourceName()), clean(a.AccessionOrEmpty()))
	}
	if c.Unit {
		if u == nil {
			fields = append(fields, "", "", "")
		} else {
			fields = append(fields, clean(u.Term.Term), clean(u.Term.SourceName()), clean(u.Term.Accession))
		}
	}
	return fields
}

func appendCharacteristics(fields []string, t *template.Template, cs []isa.Characteristic) []string {
	if t == nil {
		return fields
	}
	for _, c := range t.Columns {
		var found *isa.Characteristic
		for i := range cs {
			if cs[i].Name == c.ID {
				found = &cs[i]
				break
			}
		}
		if found == nil {
			fields = appendValue(fields, c, "", nil, nil)
			continue
		}
		fields = appendValue(fields, c, found.Value, found.Annotation, found.Unit)
	}
	return fields
}

func appendParameters(fields []string, t *template.Template, ps []isa.ParameterValue) []string {
	if t == nil {
		return fields
	}
	for _, c := range t.Columns {
		var found *isa.ParameterValue
		for i := range ps {
			if ps[i].Name == c.ID {
				found = &ps[i]
				break
			}
		}
		if found == nil {
			fields = appendValue(fields, c, "", nil, nil)
			continue
		}
		fields = appendValue(fields, c, found.Value, found.Annotation, found.Unit)
	}
	return fields
}

func findProtocol(ps []isa.ProtocolApplication, name string) (isa.ProtocolApplication, bool) {
	for _, p := range ps {
		if p.Name() == name {
			return p, true
		}
	}
	return isa.ProtocolApplication{}, false
}

func findFactor(fs []isa.FactorValue, name string) (isa.FactorValue, bool) {
	for _, f := range fs {
		if f.Name() == name {
			return f, true
		}
	}
	return isa.FactorValue{}, false
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// clean keeps a value inside its cell.
func clean(v string) string {
	if !strings.ContainsAny(v, "\t\r\n") {
		return v
	}
	return cellReplacer.Replace(v)
}
