package isa

import "strings"

// Protocol is a protocol definition as listed under STUDY PROTOCOLS.
type Protocol struct {
	Name        string
	Type        *OntologyAnnotation
	Description string
	URI         string
	Version     string
	Parameters  []OntologyAnnotation
	Components  []ProtocolComponent
	Comments    []Comment
}

// ProtocolComponent is an instrument, reagent or software used by a protocol.
type ProtocolComponent struct {
	Name string
	Type *OntologyAnnotation
}

// NewProtocol returns a protocol definition; the name is mandatory.
func NewProtocol(name string, kind *OntologyAnnotation) (*Protocol, error) {
	if strings.TrimSpace(name) == "" {
		return nil, required("protocol name")
	}
	return &Protocol{Name: name, Type: kind}, nil
}

// ProtocolApplication references a protocol from a row, together with the
// parameter values and characteristics recorded for that application.
type ProtocolApplication struct {
	Protocol        *Protocol
	Parameters      []ParameterValue
	Characteristics []Characteristic
	Position        Hint
}

// Name returns the applied protocol's name.
func (p ProtocolApplication) Name() string {
	if p.Protocol == nil {
		return ""
	}
	return p.Protocol.Name
}

// Factor is a study factor definition listed under STUDY FACTORS.
type Factor struct {
	Name     string
	Type     *OntologyAnnotation
	Comments []Comment
}

// NewFactor returns a factor definition; the name is mandatory.
func NewFactor(name string, kind *OntologyAnnotation) (*Factor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, required("factor name")
	}
	return &Factor{Name: name, Type: kind}, nil
}
