package manifest

import (
	"strings"
	"testing"

	"isatab/pkg/isa"
)

func TestLoadSample(t *testing.T) {
	inv, err := Load("testdata/bii.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if inv.Identifier != "BII-I-1" || len(inv.Ontologies) != 3 || inv.SubmissionDate.Year() != 2007 {
		t.Fatalf("unexpected investigation: %+v", inv)
	}
	studies := inv.Studies()
	if len(studies) != 1 {
		t.Fatalf("expected 1 study, got %d", len(studies))
	}
	s := studies[0]
	if s.FileName != "s_BII-S-1.txt" {
		t.Fatalf("default study file name: %s", s.FileName)
	}
	row := s.Rows()[0]
	if row.Characteristics[0].Annotation.SourceName() != "NCBITAXON" {
		t.Fatalf("annotation source not resolved: %+v", row.Characteristics[0])
	}
	p := row.Protocols[0]
	if p.Name() != "growth protocol" || p.Parameters[0].Value != "0.1" || p.Parameters[0].Unit.Term.Term != "l/hr" {
		t.Fatalf("protocol application: %+v", p)
	}
	if row.Factors[0].Factor.Name != "limiting nutrient" {
		t.Fatalf("factor not resolved: %+v", row.Factors[0])
	}
	if idx, ok := row.SampleCharacteristics[0].Position.Index(); !ok || idx != 0 {
		t.Fatalf("position hint lost")
	}
	a := s.Assays()[0]
	if a.TechnologyPlatform != "Affymetrix" || a.Rows()[0].DataFiles[0].Kind != "Raw Data File" {
		t.Fatalf("assay: %+v", a)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want string
	}{
		"empty":            {"", "empty"},
		"unknown field":    {"identifier: x\ncolour: red\n", "colour"},
		"missing id":       {"title: x\n", isa.ErrCodeRequiredField},
		"bad date":         {"identifier: x\nsubmission_date: yesterday\n", "submission_date"},
		"unknown ontology": {"identifier: x\npublications:\n  - title: t\n    status: {term: a, source: NOPE}\n", "NOPE"},
		"unknown protocol": {"identifier: x\nstudies:\n  - identifier: s\n    rows:\n      - name: r\n        protocols:\n          - ref: missing\n", "missing"},
		"unknown factor":   {"identifier: x\nstudies:\n  - identifier: s\n    rows:\n      - name: r\n        factors:\n          - {name: f, value: v}\n", `"f"`},
		"two values":       {"identifier: x\nstudies:\n  - identifier: s\n    rows:\n      - name: r\n        characteristics:\n          - {name: c, value: v, number: 1}\n", "only one"},
		"duplicate study":  {"identifier: x\nstudies:\n  - identifier: s\n  - identifier: s\n", isa.ErrCodeDuplicateIdentifier},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) && isa.CodeOf(err) != tc.want {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestContinuationSegments(t *testing.T) {
	doc := `identifier: x
studies:
  - identifier: s
    continuation: true
    assays:
      - file: extra
        continuation: true
`
	inv, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s := inv.Studies()[0]
	if s.Segment != isa.SegmentContinuation || s.Assays()[0].Segment != isa.SegmentContinuation {
		t.Fatalf("segments not applied")
	}
	if s.Assays()[0].FileName != "a_extra.txt" {
		t.Fatalf("assay file default: %s", s.Assays()[0].FileName)
	}
}
