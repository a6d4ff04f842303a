package isa

import (
	"strings"
	"time"
)

// Study owns a sample table and its assays.
type Study struct {
	Identifier        string
	FileName          string
	Title             string
	Description       string
	SubmissionDate    time.Time
	PublicReleaseDate time.Time
	DesignDescriptors []DesignDescriptor
	Publications      []*Publication
	Contacts          []*Person
	Comments          []Comment
	Segment           Segment

	rows          []Row
	hints         hintIndex
	assays        []*Assay
	investigation *Investigation
}

// NewStudy returns a study writing to fileName, or to s_<identifier>.txt when
// fileName is empty.
func NewStudy(identifier, fileName string) (*Study, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, required("study identifier")
	}
	if fileName == "" {
		fileName = "s_" + identifier + ".txt"
	}
	return &Study{Identifier: identifier, FileName: fileName}, nil
}

// AddRow validates and appends a row. A position hint already owned by
// another identifier of the same family fails with ErrCodeHintCollision.
func (s *Study) AddRow(r Row) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.hints.admit(r); err != nil {
		return err
	}
	s.rows = append(s.rows, r)
	return nil
}

// Rows returns the study rows. The slice must not be modified.
func (s *Study) Rows() []Row { return s.rows }

// Assays returns the attached assays in attachment order.
func (s *Study) Assays() []*Assay {
	out := make([]*Assay, len(s.assays))
	copy(out, s.assays)
	return out
}

// AddAssay attaches a. Its file name must not clash with any study or assay
// file already known to the study or to its investigation.
func (s *Study) AddAssay(a *Assay) error {
	if a == nil {
		return required("assay")
	}
	names := map[string]struct{}{s.FileName: {}}
	if s.investigation != nil {
		names = s.investigation.fileNames()
	}
	for _, other := range s.assays {
		names[other.FileName] = struct{}{}
	}
	if _, dup := names[a.FileName]; dup {
		return duplicateFile(a.FileName)
	}
	s.assays = append(s.assays, a)
	return nil
}

// Assay owns an assay table.
type Assay struct {
	FileName           string
	MeasurementType    *OntologyAnnotation
	TechnologyType     *OntologyAnnotation
	TechnologyPlatform string
	Comments           []Comment
	Segment            Segment

	rows  []Row
	hints hintIndex
}

// NewAssay returns an assay writing to fileName, or to a_<name>.txt when
// fileName has no extension.
func NewAssay(fileName string) (*Assay, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, required("assay file name")
	}
	if !strings.Contains(fileName, ".") {
		fileName = "a_" + fileName + ".txt"
	}
	return &Assay{FileName: fileName}, nil
}

// AddRow validates and appends a row, rejecting colliding position hints.
func (a *Assay) AddRow(r Row) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := a.hints.admit(r); err != nil {
		return err
	}
	a.rows = append(a.rows, r)
	return nil
}

// Rows returns the assay rows. The slice must not be modified.
func (a *Assay) Rows() []Row { return a.rows }
