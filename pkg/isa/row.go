package isa

import "github.com/agilira/go-errors"

// Row is one line of a study or assay table. For study tables Name is the
// Source Name and SampleName the Sample Name; for assay tables Name is the
// Sample Name and SampleName the Assay Name.
type Row struct {
	Name                  string
	Characteristics       []Characteristic
	Protocols             []ProtocolApplication
	Factors               []FactorValue
	Comments              []Comment
	SampleName            string
	SampleCharacteristics []Characteristic
	DataFiles             []DataFile
}

// Validate rejects rows whose attributes cannot be rendered: missing names,
// value/annotation mismatches and repeated characteristics, protocols,
// parameters or factors. Repeated comments and data files are allowed and
// render as one multi-valued cell.
func (r Row) Validate() error {
	if err := uniqueCharacteristics("characteristic", r.Characteristics); err != nil {
		return err
	}
	if err := uniqueCharacteristics("sample characteristic", r.SampleCharacteristics); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(r.Protocols))
	for _, p := range r.Protocols {
		if p.Protocol == nil {
			return required("protocol")
		}
		if err := unique("protocol", p.Name(), seen); err != nil {
			return err
		}
		params := make(map[string]struct{}, len(p.Parameters))
		for _, pv := range p.Parameters {
			if err := pv.Validate(); err != nil {
				return err
			}
			if err := unique("parameter", pv.Name, params); err != nil {
				return err
			}
		}
		if err := uniqueCharacteristics("protocol characteristic", p.Characteristics); err != nil {
			return err
		}
	}
	factors := make(map[string]struct{}, len(r.Factors))
	for _, f := range r.Factors {
		if err := f.Validate(); err != nil {
			return err
		}
		if err := unique("factor", f.Name(), factors); err != nil {
			return err
		}
	}
	for _, c := range r.Comments {
		if c.Name == "" {
			return required("comment name")
		}
	}
	for _, d := range r.DataFiles {
		if d.Kind == "" {
			return required("data file kind")
		}
	}
	return nil
}

func uniqueCharacteristics(kind string, cs []Characteristic) error {
	seen := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if err := c.Validate(); err != nil {
			return err
		}
		if err := unique(kind, c.Name, seen); err != nil {
			return err
		}
	}
	return nil
}

func unique(kind, name string, seen map[string]struct{}) error {
	if _, dup := seen[name]; dup {
		return errors.New(ErrCodeDuplicateAttribute, "attribute repeated within one row").
			WithContext("kind", kind).
			WithContext("name", name)
	}
	seen[name] = struct{}{}
	return nil
}
