// Package isa models the Investigation -> Study -> Assay tree written as
// ISA-Tab. Constructors and attach operations validate eagerly; rendering
// never mutates the tree.
package isa

import (
	"strings"
	"time"

	"github.com/agilira/go-errors"
)

// Segment tells whether a study or assay starts its file or continues one
// written by an earlier invocation.
type Segment int

const (
	// SegmentHead writes the header and creates or truncates the file.
	SegmentHead Segment = iota
	// SegmentContinuation appends rows to an existing file without a header.
	SegmentContinuation
)

// Investigation is the root of the tree.
type Investigation struct {
	Identifier        string
	Title             string
	Description       string
	SubmissionDate    time.Time
	PublicReleaseDate time.Time
	Ontologies        []*Ontology
	Publications      []*Publication
	Contacts          []*Person
	Comments          []Comment

	studies []*Study
}

// NewInvestigation returns an investigation; the identifier is mandatory.
func NewInvestigation(identifier, title string) (*Investigation, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, required("investigation identifier")
	}
	return &Investigation{Identifier: identifier, Title: title}, nil
}

// Studies returns the attached studies in attachment order.
func (inv *Investigation) Studies() []*Study {
	out := make([]*Study, len(inv.studies))
	copy(out, inv.studies)
	return out
}

// AddStudy attaches s. Study identifiers and every study or assay file name
// must be unique within the investigation.
func (inv *Investigation) AddStudy(s *Study) error {
	if s == nil {
		return required("study")
	}
	if s.investigation != nil {
		return errors.New(ErrCodeDuplicateIdentifier, "study already attached").
			WithContext("study", s.Identifier)
	}
	names := inv.fileNames()
	for _, other := range inv.studies {
		if other.Identifier == s.Identifier {
			return errors.New(ErrCodeDuplicateIdentifier, "duplicate study identifier").
				WithContext("study", s.Identifier)
		}
	}
	candidate := append([]string{s.FileName}, assayFileNames(s)...)
	for _, name := range candidate {
		if _, dup := names[name]; dup {
			return duplicateFile(name)
		}
		names[name] = struct{}{}
	}
	s.investigation = inv
	inv.studies = append(inv.studies, s)
	return nil
}

// FileName returns the investigation file name for the given base name.
func FileName(name string) string {
	return name + "_investigation.txt"
}

func (inv *Investigation) fileNames() map[string]struct{} {
	names := make(map[string]struct{})
	for _, s := range inv.studies {
		names[s.FileName] = struct{}{}
		for _, a := range s.assays {
			names[a.FileName] = struct{}{}
		}
	}
	return names
}

func assayFileNames(s *Study) []string {
	out := make([]string, 0, len(s.assays))
	for _, a := range s.assays {
		out = append(out, a.FileName)
	}
	return out
}

func duplicateFile(name string) error {
	return errors.New(ErrCodeDuplicateFileName, "duplicate output file name").
		WithContext("file", name)
}
