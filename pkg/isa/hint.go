package isa

import "github.com/agilira/go-errors"

// Hint is an optional requested column index for an attribute. The zero
// value carries no hint.
type Hint struct {
	index int
	set   bool
}

// At returns a hint requesting column index i among the attribute's family.
func At(i int) Hint {
	if i < 0 {
		return Hint{}
	}
	return Hint{index: i, set: true}
}

// Index returns the requested index and whether one was requested.
func (h Hint) Index() (int, bool) { return h.index, h.set }

// hintIndex remembers which identifier owns each hinted index of a table,
// per attribute family. Parameters and protocol characteristics are scoped
// to their protocol. Only the first hint of an identifier counts.
type hintIndex struct {
	scopes map[string]*hintScope
}

type hintScope struct {
	hints  map[string]int
	owners map[int]string
}

type hintClaim struct {
	scope, id string
	hint      Hint
}

// admit checks every hint of r against the table's earlier rows and records
// them only when none collides.
func (x *hintIndex) admit(r Row) error {
	var pending hintIndex
	for _, c := range rowClaims(r) {
		idx, ok := c.hint.Index()
		if !ok || x.hinted(c.scope, c.id) || pending.hinted(c.scope, c.id) {
			continue
		}
		owner, taken := x.owner(c.scope, idx)
		if !taken {
			owner, taken = pending.owner(c.scope, idx)
		}
		if taken && owner != c.id {
			return errors.New(ErrCodeHintCollision, "two columns claim the same position").
				WithContext("family", c.scope).
				WithContext("position", idx).
				WithContext("first", owner).
				WithContext("second", c.id)
		}
		pending.claim(c.scope, c.id, idx)
	}
	for scope, s := range pending.scopes {
		for id, idx := range s.hints {
			x.claim(scope, id, idx)
		}
	}
	return nil
}

func (x *hintIndex) hinted(scope, id string) bool {
	s, ok := x.scopes[scope]
	if !ok {
		return false
	}
	_, ok = s.hints[id]
	return ok
}

func (x *hintIndex) owner(scope string, idx int) (string, bool) {
	s, ok := x.scopes[scope]
	if !ok {
		return "", false
	}
	id, ok := s.owners[idx]
	return id, ok
}

func (x *hintIndex) claim(scope, id string, idx int) {
	if x.scopes == nil {
		x.scopes = make(map[string]*hintScope)
	}
	s, ok := x.scopes[scope]
	if !ok {
		s = &hintScope{hints: make(map[string]int), owners: make(map[int]string)}
		x.scopes[scope] = s
	}
	s.hints[id] = idx
	s.owners[idx] = id
}

func rowClaims(r Row) []hintClaim {
	var out []hintClaim
	for _, c := range r.Characteristics {
		out = append(out, hintClaim{"characteristic", c.Name, c.Position})
	}
	for _, p := range r.Protocols {
		name := p.Name()
		out = append(out, hintClaim{"protocol", name, p.Position})
		for _, pv := range p.Parameters {
			out = append(out, hintClaim{"parameter/" + name, pv.Name, pv.Position})
		}
		for _, c := range p.Characteristics {
			out = append(out, hintClaim{"protocol characteristic/" + name, c.Name, c.Position})
		}
	}
	for _, f := range r.Factors {
		out = append(out, hintClaim{"factor", f.Name(), f.Position})
	}
	for _, c := range r.Comments {
		out = append(out, hintClaim{"comment", c.Name, c.Position})
	}
	for _, c := range r.SampleCharacteristics {
		out = append(out, hintClaim{"sample characteristic", c.Name, c.Position})
	}
	for _, d := range r.DataFiles {
		out = append(out, hintClaim{"data file", d.Kind, d.Position})
	}
	return out
}
