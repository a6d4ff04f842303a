package isa

import "strings"

// Person is a contact listed under INVESTIGATION CONTACTS or STUDY CONTACTS.
type Person struct {
	LastName    string
	FirstName   string
	MidInitials string
	Email       string
	Phone       string
	Fax         string
	Address     string
	Affiliation string
	Roles       []OntologyAnnotation
	Comments    []Comment
}

// NewPerson returns a contact; at least one of the names is mandatory.
func NewPerson(last, first string) (*Person, error) {
	if strings.TrimSpace(last) == "" && strings.TrimSpace(first) == "" {
		return nil, required("person name")
	}
	return &Person{LastName: last, FirstName: first}, nil
}

// Publication is listed under INVESTIGATION PUBLICATIONS or STUDY PUBLICATIONS.
type Publication struct {
	PubMedID   string
	DOI        string
	AuthorList string
	Title      string
	Status     *OntologyAnnotation
	Comments   []Comment
}

// NewPublication returns a publication; the title is mandatory.
func NewPublication(title, authors, doi, pubmed string) (*Publication, error) {
	if strings.TrimSpace(title) == "" {
		return nil, required("publication title")
	}
	return &Publication{Title: title, AuthorList: authors, DOI: doi, PubMedID: pubmed}, nil
}

// DesignDescriptor classifies a study design.
type DesignDescriptor struct {
	Type     OntologyAnnotation
	Comments []Comment
}
