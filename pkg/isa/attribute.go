package isa

import (
	"strings"

	"github.com/agilira/go-errors"
)

// Characteristic describes a material (source, sample, extract).
type Characteristic struct {
	Name       string
	Value      string
	Annotation *OntologyAnnotation
	Unit       *Unit
	Position   Hint
}

// NewCharacteristic returns a free-text characteristic.
func NewCharacteristic(name, value string) (Characteristic, error) {
	c := Characteristic{Name: name, Value: value}
	return c, c.Validate()
}

// NewAnnotatedCharacteristic returns a characteristic whose value is the
// annotation term.
func NewAnnotatedCharacteristic(name string, value *OntologyAnnotation) (Characteristic, error) {
	c := Characteristic{Name: name, Annotation: value}
	if value != nil {
		c.Value = value.Term
	}
	return c, c.Validate()
}

// NewNumericCharacteristic returns a characteristic with a numeric value and
// an optional unit.
func NewNumericCharacteristic(name string, value float64, unit *Unit) (Characteristic, error) {
	c := Characteristic{Name: name, Value: FormatNumber(value), Unit: unit}
	return c, c.Validate()
}

// At returns a copy of c carrying a column position hint.
func (c Characteristic) At(i int) Characteristic {
	c.Position = At(i)
	return c
}

// Validate checks the name and that an annotated value agrees with its term.
func (c Characteristic) Validate() error {
	return validateValue("characteristic", c.Name, c.Value, c.Annotation)
}

// ParameterValue is the value a protocol application gave to a parameter.
type ParameterValue struct {
	Name       string
	Value      string
	Annotation *OntologyAnnotation
	Unit       *Unit
	Position   Hint
}

// NewParameterValue returns a free-text parameter value.
func NewParameterValue(name, value string) (ParameterValue, error) {
	p := ParameterValue{Name: name, Value: value}
	return p, p.Validate()
}

// NewNumericParameterValue returns a numeric parameter value with an
// optional unit.
func NewNumericParameterValue(name string, value float64, unit *Unit) (ParameterValue, error) {
	p := ParameterValue{Name: name, Value: FormatNumber(value), Unit: unit}
	return p, p.Validate()
}

// At returns a copy of p carrying a column position hint.
func (p ParameterValue) At(i int) ParameterValue {
	p.Position = At(i)
	return p
}

// Validate checks the name and that an annotated value agrees with its term.
func (p ParameterValue) Validate() error {
	return validateValue("parameter value", p.Name, p.Value, p.Annotation)
}

// FactorValue is the level of a study factor for a row.
type FactorValue struct {
	Factor     *Factor
	Value      string
	Annotation *OntologyAnnotation
	Unit       *Unit
	Position   Hint
}

// NewFactorValue returns a free-text factor value.
func NewFactorValue(factor *Factor, value string) (FactorValue, error) {
	f := FactorValue{Factor: factor, Value: value}
	return f, f.Validate()
}

// NewNumericFactorValue returns a numeric factor value with an optional unit.
func NewNumericFactorValue(factor *Factor, value float64, unit *Unit) (FactorValue, error) {
	f := FactorValue{Factor: factor, Value: FormatNumber(value), Unit: unit}
	return f, f.Validate()
}

// At returns a copy of f carrying a column position hint.
func (f FactorValue) At(i int) FactorValue {
	f.Position = At(i)
	return f
}

// Name returns the factor name.
func (f FactorValue) Name() string {
	if f.Factor == nil {
		return ""
	}
	return f.Factor.Name
}

// Validate checks the factor reference and value/annotation agreement.
func (f FactorValue) Validate() error {
	if f.Factor == nil {
		return required("factor")
	}
	return validateValue("factor value", f.Factor.Name, f.Value, f.Annotation)
}

// DataFile names a file produced for a row, rendered under its kind column
// (for example "Raw Data File").
type DataFile struct {
	Kind     string
	Name     string
	Position Hint
}

func validateValue(kind, name, value string, annotation *OntologyAnnotation) error {
	if strings.TrimSpace(name) == "" {
		return required(kind + " name")
	}
	if annotation != nil && value != "" && annotation.Term != "" && value != annotation.Term {
		return errors.New(ErrCodeValueMismatch, "value does not match annotation term").
			WithContext("attribute", name).
			WithContext("value", value).
			WithContext("term", annotation.Term)
	}
	return nil
}
