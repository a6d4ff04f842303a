package template

import (
	"sort"

	"github.com/agilira/go-errors"

	"isatab/pkg/isa"
)

// Unify computes the layout of a study or assay file from its rows in a
// single pass. Identifiers keep first-seen order except where a position
// hint claims an index; two identifiers claiming the same index of one
// family is a construction error.
func Unify(kind Kind, rows []isa.Row) (*File, error) {
	u := unifier{
		chars:     newCollector(Characteristics),
		protocols: newCollector(Protocols),
		factors:   newCollector(Factors),
		comments:  newCollector(Comments),
		samples:   newCollector(SampleCharacteristics),
		dataFiles: newCollector(DataFiles),
		params:    make(map[string]*collector),
		protoChar: make(map[string]*collector),
		protoDefs: make(map[string]*isa.Protocol),
		factorDef: make(map[string]*isa.Factor),
	}
	for i := range rows {
		if err := u.observe(&rows[i]); err != nil {
			return nil, errors.Wrap(err, isa.ErrCodeHintCollision, "unify columns").
				WithContext("kind", kind.String()).
				WithContext("row", i)
		}
	}
	lead, trail := Labels(kind)
	f := &File{
		Kind:                  kind,
		Lead:                  lead,
		Trail:                 trail,
		Characteristics:       u.chars.build(),
		Protocols:             u.protocols.build(),
		Factors:               u.factors.build(),
		Comments:              u.comments.build(),
		SampleCharacteristics: u.samples.build(),
		DataFiles:             u.dataFiles.build(),
		protocols:             u.protoDefs,
		factors:               u.factorDef,
	}
	for _, c := range f.Protocols.Columns {
		if f.Protocols.Children == nil {
			f.Protocols.Children = make(map[string][]*Template)
		}
		f.Protocols.Children[c.ID] = []*Template{u.params[c.ID].build(), u.protoChar[c.ID].build()}
	}
	return f, nil
}

type unifier struct {
	chars, protocols, factors, comments, samples, dataFiles *collector
	params, protoChar                                       map[string]*collector
	protoDefs                                               map[string]*isa.Protocol
	factorDef                                               map[string]*isa.Factor
}

func (u *unifier) observe(r *isa.Row) error {
	for _, c := range r.Characteristics {
		if err := u.chars.observe(c.Name, c.Position, c.Annotation != nil, c.Unit != nil); err != nil {
			return err
		}
	}
	for _, p := range r.Protocols {
		name := p.Name()
		if err := u.protocols.observe(name, p.Position, false, false); err != nil {
			return err
		}
		if _, ok := u.protoDefs[name]; !ok {
			u.protoDefs[name] = p.Protocol
			u.params[name] = newCollector(Parameters)
			u.protoChar[name] = newCollector(Characteristics)
		}
		for _, pv := range p.Parameters {
			if err := u.params[name].observe(pv.Name, pv.Position, pv.Annotation != nil, pv.Unit != nil); err != nil {
				return err
			}
		}
		for _, c := range p.Characteristics {
			if err := u.protoChar[name].observe(c.Name, c.Position, c.Annotation != nil, c.Unit != nil); err != nil {
				return err
			}
		}
	}
	for _, f := range r.Factors {
		if err := u.factors.observe(f.Name(), f.Position, f.Annotation != nil, f.Unit != nil); err != nil {
			return err
		}
		if _, ok := u.factorDef[f.Name()]; !ok {
			u.factorDef[f.Name()] = f.Factor
		}
	}
	for _, c := range r.Comments {
		if err := u.comments.observe(c.Name, c.Position, false, false); err != nil {
			return err
		}
	}
	for _, c := range r.SampleCharacteristics {
		if err := u.samples.observe(c.Name, c.Position, c.Annotation != nil, c.Unit != nil); err != nil {
			return err
		}
	}
	for _, d := range r.DataFiles {
		if err := u.dataFiles.observe(d.Kind, d.Position, false, false); err != nil {
			return err
		}
	}
	return nil
}

type collector struct {
	family Family
	order  []string
	cols   map[string]*Column
	hints  map[string]int
	owners map[int]string
}

func newCollector(f Family) *collector {
	return &collector{
		family: f,
		cols:   make(map[string]*Column),
		hints:  make(map[string]int),
		owners: make(map[int]string),
	}
}

// observe records one attribute instance. The first hint declared for an
// identifier is the one that counts.
func (c *collector) observe(id string, hint isa.Hint, annotated, unit bool) error {
	col, ok := c.cols[id]
	if !ok {
		col = &Column{ID: id}
		c.cols[id] = col
		c.order = append(c.order, id)
	}
	col.Annotated = col.Annotated || annotated
	col.Unit = col.Unit || unit
	idx, set := hint.Index()
	if !set {
		return nil
	}
	if _, has := c.hints[id]; has {
		return nil
	}
	if owner, taken := c.owners[idx]; taken && owner != id {
		return errors.New(isa.ErrCodeHintCollision, "two columns claim the same position").
			WithContext("family", string(c.family)).
			WithContext("position", idx).
			WithContext("first", owner).
			WithContext("second", id)
	}
	c.hints[id] = idx
	c.owners[idx] = id
	return nil
}

// build places hinted identifiers at their index and fills the remaining
// slots with unhinted identifiers in first-seen order. Hints beyond the
// column count go last, in ascending hint order.
func (c *collector) build() *Template {
	n := len(c.order)
	t := &Template{Family: c.family, Columns: make([]Column, 0, n)}
	var free []string
	var overflow []string
	for _, id := range c.order {
		idx, hinted := c.hints[id]
		switch {
		case !hinted:
			free = append(free, id)
		case idx >= n:
			overflow = append(overflow, id)
		}
	}
	sort.SliceStable(overflow, func(i, j int) bool { return c.hints[overflow[i]] < c.hints[overflow[j]] })
	for slot := 0; slot < n; slot++ {
		var id string
		if owner, ok := c.owners[slot]; ok {
			id = owner
		} else if len(free) > 0 {
			id, free = free[0], free[1:]
		} else {
			id, overflow = overflow[0], overflow[1:]
		}
		t.Columns = append(t.Columns, *c.cols[id])
	}
	return t
}
