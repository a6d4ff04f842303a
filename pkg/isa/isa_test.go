package isa

import "testing"

func TestAddStudyRejectsDuplicates(t *testing.T) {
	inv, err := NewInvestigation("INV1", "title")
	if err != nil {
		t.Fatalf("new investigation: %v", err)
	}
	s1, _ := NewStudy("S1", "")
	if s1.FileName != "s_S1.txt" {
		t.Fatalf("expected default study file name, got %q", s1.FileName)
	}
	if err := inv.AddStudy(s1); err != nil {
		t.Fatalf("add study: %v", err)
	}
	dupID, _ := NewStudy("S1", "other.txt")
	if err := inv.AddStudy(dupID); !HasCode(err, ErrCodeDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier, got %v", err)
	}
	dupFile, _ := NewStudy("S2", "s_S1.txt")
	if err := inv.AddStudy(dupFile); !HasCode(err, ErrCodeDuplicateFileName) {
		t.Fatalf("expected duplicate file name, got %v", err)
	}
}

func TestAddAssayRejectsDuplicateFileAcrossStudies(t *testing.T) {
	inv, _ := NewInvestigation("INV1", "")
	s1, _ := NewStudy("S1", "")
	s2, _ := NewStudy("S2", "")
	a1, _ := NewAssay("x")
	if a1.FileName != "a_x.txt" {
		t.Fatalf("expected default assay name, got %q", a1.FileName)
	}
	if err := s1.AddAssay(a1); err != nil {
		t.Fatalf("add assay: %v", err)
	}
	if err := inv.AddStudy(s1); err != nil {
		t.Fatalf("add study: %v", err)
	}
	if err := inv.AddStudy(s2); err != nil {
		t.Fatalf("add study: %v", err)
	}
	a2, _ := NewAssay("a_x.txt")
	if err := s2.AddAssay(a2); !HasCode(err, ErrCodeDuplicateFileName) {
		t.Fatalf("expected duplicate file name, got %v", err)
	}
	a3, _ := NewAssay("s_S1.txt")
	if err := s2.AddAssay(a3); !HasCode(err, ErrCodeDuplicateFileName) {
		t.Fatalf("expected clash with study file, got %v", err)
	}
}

func TestDetachedStudyAssayClashCaughtOnAttach(t *testing.T) {
	inv, _ := NewInvestigation("INV1", "")
	s1, _ := NewStudy("S1", "")
	a1, _ := NewAssay("a.txt")
	_ = s1.AddAssay(a1)
	_ = inv.AddStudy(s1)
	s2, _ := NewStudy("S2", "")
	a2, _ := NewAssay("a.txt")
	if err := s2.AddAssay(a2); err != nil {
		t.Fatalf("detached study should accept assay: %v", err)
	}
	if err := inv.AddStudy(s2); !HasCode(err, ErrCodeDuplicateFileName) {
		t.Fatalf("expected duplicate file name on attach, got %v", err)
	}
	if len(inv.Studies()) != 1 {
		t.Fatalf("failed attach must not register study")
	}
}

func TestCharacteristicValueMismatch(t *testing.T) {
	c := Characteristic{Name: "Organism", Value: "mouse", Annotation: NewAnnotation("Homo sapiens", "9606", nil)}
	if err := c.Validate(); !HasCode(err, ErrCodeValueMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	ok, err := NewAnnotatedCharacteristic("Organism", NewAnnotation("Homo sapiens", "9606", nil))
	if err != nil || ok.Value != "Homo sapiens" {
		t.Fatalf("expected term as value, got %q %v", ok.Value, err)
	}
	if _, err := NewCharacteristic("", "x"); !HasCode(err, ErrCodeRequiredField) {
		t.Fatalf("expected required field, got %v", err)
	}
}

func TestNumericFormatting(t *testing.T) {
	cases := map[float64]string{5: "5", 2.5: "2.5", -3: "-3", 0.125: "0.125"}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
	c, err := NewNumericCharacteristic("Age", 12.0, NewUnit("week", "UO:0000034", nil))
	if err != nil || c.Value != "12" {
		t.Fatalf("expected integral rendering, got %q %v", c.Value, err)
	}
}

func TestRowValidateRejectsRepeatedAttributes(t *testing.T) {
	org, _ := NewCharacteristic("Organism", "mouse")
	row := Row{Name: "src1", Characteristics: []Characteristic{org, org}}
	if err := row.Validate(); !HasCode(err, ErrCodeDuplicateAttribute) {
		t.Fatalf("expected duplicate attribute, got %v", err)
	}
	note, _ := NewComment("note", "a")
	row = Row{Name: "src1", Comments: []Comment{note, note}}
	if err := row.Validate(); err != nil {
		t.Fatalf("repeated comments are multi-valued: %v", err)
	}
	f, _ := NewFactor("dose", nil)
	row = Row{Name: "src1", Factors: []FactorValue{{Factor: f, Value: "1"}, {Factor: f, Value: "2"}}}
	if err := row.Validate(); !HasCode(err, ErrCodeDuplicateAttribute) {
		t.Fatalf("expected duplicate factor, got %v", err)
	}
}

func TestHint(t *testing.T) {
	if _, ok := (Hint{}).Index(); ok {
		t.Fatalf("zero hint must be unset")
	}
	if i, ok := At(0).Index(); !ok || i != 0 {
		t.Fatalf("expected hint 0, got %d %v", i, ok)
	}
	if _, ok := At(-1).Index(); ok {
		t.Fatalf("negative hint must be unset")
	}
}

func TestAddRowRejectsHintCollision(t *testing.T) {
	study, _ := NewStudy("S1", "")
	height, _ := NewCharacteristic("Height", "1")
	weight, _ := NewCharacteristic("Weight", "2")
	if err := study.AddRow(Row{Name: "x", Characteristics: []Characteristic{height.At(0)}}); err != nil {
		t.Fatalf("first row: %v", err)
	}
	if err := study.AddRow(Row{Name: "y", Characteristics: []Characteristic{weight.At(0)}}); !HasCode(err, ErrCodeHintCollision) {
		t.Fatalf("expected hint collision, got %v", err)
	}
	if len(study.Rows()) != 1 {
		t.Fatalf("rejected row must not be kept, have %d rows", len(study.Rows()))
	}
	// Same identifier again, and a different family at the same index, are fine.
	note, _ := NewComment("note", "a")
	note.Position = At(0)
	if err := study.AddRow(Row{Name: "z", Characteristics: []Characteristic{height.At(0)}, Comments: []Comment{note}}); err != nil {
		t.Fatalf("repeated hint: %v", err)
	}
	// A later hint for an already hinted identifier is ignored.
	if err := study.AddRow(Row{Name: "w", Characteristics: []Characteristic{height.At(3), weight}}); err != nil {
		t.Fatalf("later hint: %v", err)
	}
}

func TestAddRowHintScopesPerProtocol(t *testing.T) {
	assay, _ := NewAssay("rna")
	extraction, _ := NewProtocol("extraction", nil)
	labeling, _ := NewProtocol("labeling", nil)
	temp, _ := NewParameterValue("temperature", "4")
	dye, _ := NewParameterValue("dye", "Cy3")
	duration, _ := NewParameterValue("time", "5")
	row := Row{Name: "s1", Protocols: []ProtocolApplication{
		{Protocol: extraction, Parameters: []ParameterValue{temp.At(0)}},
		{Protocol: labeling, Parameters: []ParameterValue{dye.At(0)}},
	}}
	if err := assay.AddRow(row); err != nil {
		t.Fatalf("parameters of different protocols: %v", err)
	}
	clash := Row{Name: "s2", Protocols: []ProtocolApplication{{Protocol: extraction, Parameters: []ParameterValue{duration.At(0)}}}}
	if err := assay.AddRow(clash); !HasCode(err, ErrCodeHintCollision) {
		t.Fatalf("expected hint collision, got %v", err)
	}
	// Collisions inside one row are caught too, and nothing from it is kept.
	fresh, _ := NewAssay("dna")
	a, _ := NewCharacteristic("A", "1")
	b, _ := NewCharacteristic("B", "2")
	if err := fresh.AddRow(Row{Name: "s", Characteristics: []Characteristic{a.At(1), b.At(1)}}); !HasCode(err, ErrCodeHintCollision) {
		t.Fatalf("expected in-row collision, got %v", err)
	}
	if err := fresh.AddRow(Row{Name: "s", Characteristics: []Characteristic{b.At(1)}}); err != nil {
		t.Fatalf("rejected row must not claim hints: %v", err)
	}
}
