package isa

import (
	"strconv"
	"strings"
)

// Ontology is a term source listed in the ONTOLOGY SOURCE REFERENCE section.
type Ontology struct {
	Name        string
	File        string
	Version     string
	Description string
	Comments    []Comment
}

// NewOntology returns a term source; name is mandatory.
func NewOntology(name, file, version, description string) (*Ontology, error) {
	if strings.TrimSpace(name) == "" {
		return nil, required("ontology name")
	}
	return &Ontology{Name: name, File: file, Version: version, Description: description}, nil
}

// OntologyAnnotation is a term/accession/source triple.
type OntologyAnnotation struct {
	Term      string
	Accession string
	Source    *Ontology
	Comments  []Comment
}

// NewAnnotation returns an ontology annotation. A nil source is allowed.
func NewAnnotation(term, accession string, source *Ontology) *OntologyAnnotation {
	return &OntologyAnnotation{Term: term, Accession: accession, Source: source}
}

// SourceName returns the term source name or "".
func (a *OntologyAnnotation) SourceName() string {
	if a == nil || a.Source == nil {
		return ""
	}
	return a.Source.Name
}

// TermOrEmpty returns the term of a possibly nil annotation.
func (a *OntologyAnnotation) TermOrEmpty() string {
	if a == nil {
		return ""
	}
	return a.Term
}

// AccessionOrEmpty returns the accession of a possibly nil annotation.
func (a *OntologyAnnotation) AccessionOrEmpty() string {
	if a == nil {
		return ""
	}
	return a.Accession
}

// Unit qualifies a numeric value.
type Unit struct {
	Term OntologyAnnotation
}

// NewUnit wraps an annotation as a unit.
func NewUnit(term, accession string, source *Ontology) *Unit {
	return &Unit{Term: OntologyAnnotation{Term: term, Accession: accession, Source: source}}
}

// Comment is a free name/value pair. Within a row, the hint orders the
// comment column among the row's comments.
type Comment struct {
	Name     string
	Value    string
	Position Hint
}

// NewComment returns a comment; the name is mandatory.
func NewComment(name, value string) (Comment, error) {
	if strings.TrimSpace(name) == "" {
		return Comment{}, required("comment name")
	}
	return Comment{Name: name, Value: value}, nil
}

// FormatNumber renders whole numbers without a fractional part.
func FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
