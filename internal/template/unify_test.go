package template

import (
	"reflect"
	"testing"

	"isatab/pkg/isa"
)

func char(name, value string, hint ...int) isa.Characteristic {
	c := isa.Characteristic{Name: name, Value: value}
	if len(hint) > 0 {
		c.Position = isa.At(hint[0])
	}
	return c
}

func TestUnifyFirstSeenOrderWithHint(t *testing.T) {
	rows := []isa.Row{
		{Name: "s1", Characteristics: []isa.Characteristic{char("Organism", "mouse")}},
		{Name: "s2", Characteristics: []isa.Characteristic{char("Organism", "rat"), char("Treatment", "x", 0)}},
	}
	f, err := Unify(StudyFile, rows)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got, want := f.Characteristics.IDs(), []string{"Treatment", "Organism"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if f.Lead != "Source Name" || f.Trail != "Sample Name" {
		t.Fatalf("unexpected labels %q %q", f.Lead, f.Trail)
	}
}

func TestUnifyHintPrecedence(t *testing.T) {
	rows := []isa.Row{
		{Characteristics: []isa.Characteristic{char("B", "1"), char("A", "1", 2)}},
		{Characteristics: []isa.Characteristic{char("C", "1")}},
	}
	f, err := Unify(StudyFile, rows)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got := f.Characteristics.IDs(); got[2] != "A" || len(got) != 3 {
		t.Fatalf("expected A at index 2, got %v", got)
	}
}

func TestUnifyOverflowHintsGoLast(t *testing.T) {
	rows := []isa.Row{{Characteristics: []isa.Characteristic{char("Z", "1", 9), char("Y", "1", 7), char("X", "1")}}}
	f, err := Unify(AssayFile, rows)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got, want := f.Characteristics.IDs(), []string{"X", "Y", "Z"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if f.Lead != "Sample Name" || f.Trail != "Assay Name" {
		t.Fatalf("unexpected assay labels %q %q", f.Lead, f.Trail)
	}
}

func TestUnifyHintCollision(t *testing.T) {
	rows := []isa.Row{
		{Characteristics: []isa.Characteristic{char("A", "1", 1)}},
		{Characteristics: []isa.Characteristic{char("B", "1", 1)}},
	}
	_, err := Unify(StudyFile, rows)
	if !isa.HasCode(err, isa.ErrCodeHintCollision) {
		t.Fatalf("expected hint collision, got %v", err)
	}
}

func TestUnifySameIdentifierRepeatingHintIsFine(t *testing.T) {
	rows := []isa.Row{
		{Characteristics: []isa.Characteristic{char("A", "1", 0)}},
		{Characteristics: []isa.Characteristic{char("A", "2", 0), char("B", "2")}},
	}
	f, err := Unify(StudyFile, rows)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got, want := f.Characteristics.IDs(), []string{"A", "B"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestUnifyDeterministic(t *testing.T) {
	sex := char("Sex", "f")
	rows := []isa.Row{
		{Characteristics: []isa.Characteristic{char("Organism", "m"), sex}},
		{Characteristics: []isa.Characteristic{char("Age", "3", 0)}},
	}
	a, _ := Unify(StudyFile, rows)
	b, _ := Unify(StudyFile, rows)
	if !reflect.DeepEqual(a.Characteristics, b.Characteristics) {
		t.Fatalf("unification is not deterministic")
	}
}

func TestUnifyProtocolChildrenAndSummary(t *testing.T) {
	extraction, _ := isa.NewProtocol("extraction", nil)
	labeling, _ := isa.NewProtocol("labeling", nil)
	dose, _ := isa.NewFactor("dose", nil)
	temp, _ := isa.NewNumericParameterValue("temperature", 4, isa.NewUnit("degree Celsius", "UO:0000027", nil))
	rows := []isa.Row{
		{
			Protocols: []isa.ProtocolApplication{{Protocol: extraction, Parameters: []isa.ParameterValue{temp}}},
			Factors:   []isa.FactorValue{{Factor: dose, Value: "1"}},
		},
		{
			Protocols: []isa.ProtocolApplication{
				{Protocol: labeling, Position: isa.At(0)},
				{Protocol: extraction, Parameters: []isa.ParameterValue{{Name: "kit", Value: "K1"}}},
			},
		},
	}
	f, err := Unify(StudyFile, rows)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if got, want := f.Protocols.IDs(), []string{"labeling", "extraction"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected protocols %v, got %v", want, got)
	}
	params := f.Protocols.Child("extraction", Parameters)
	if got, want := params.IDs(), []string{"temperature", "kit"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected parameters %v, got %v", want, got)
	}
	if !params.Columns[0].Unit || params.Columns[1].Unit {
		t.Fatalf("unit flag not tracked per column: %+v", params.Columns)
	}
	s := f.Summary()
	if len(s.Protocols) != 2 || s.Protocols[1].Protocol != extraction {
		t.Fatalf("unexpected protocol summary %+v", s.Protocols)
	}
	if len(s.Factors) != 1 || s.Factors[0] != dose {
		t.Fatalf("unexpected factor summary %+v", s.Factors)
	}
}

func TestUnifyEmptyRows(t *testing.T) {
	f, err := Unify(StudyFile, nil)
	if err != nil {
		t.Fatalf("unify: %v", err)
	}
	if len(f.Characteristics.Columns)+len(f.Protocols.Columns)+len(f.Comments.Columns) != 0 {
		t.Fatalf("expected no variable columns")
	}
}

func TestMergeKeepsFirstOccurrence(t *testing.T) {
	p1, _ := isa.NewProtocol("p1", nil)
	p2, _ := isa.NewProtocol("p2", nil)
	f1, _ := isa.NewFactor("f1", nil)
	study := Summary{Protocols: []ProtocolSummary{{Protocol: p1, Parameters: []string{"a"}}}, Factors: []*isa.Factor{f1}}
	assay := Summary{Protocols: []ProtocolSummary{{Protocol: p2}, {Protocol: p1, Parameters: []string{"b", "a"}}}, Factors: []*isa.Factor{f1}}
	m := Merge(study, assay)
	if len(m.Protocols) != 2 || m.Protocols[0].Protocol != p1 || m.Protocols[1].Protocol != p2 {
		t.Fatalf("unexpected merged protocols %+v", m.Protocols)
	}
	if got, want := m.Protocols[0].Parameters, []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected parameters %v, got %v", want, got)
	}
	if len(m.Factors) != 1 {
		t.Fatalf("expected deduplicated factors, got %d", len(m.Factors))
	}
}
