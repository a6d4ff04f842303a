package isatab

import (
	"context"
	"io"

	"isatab/internal/exchange"
	"isatab/internal/ledger"
	"isatab/internal/pipeline"
	"isatab/internal/render"
	"isatab/internal/template"
	"isatab/pkg/isa"
)

// destFunc returns where a study or assay file goes; nil makes the task
// publish-only.
type destFunc func(file string, seg isa.Segment) pipeline.Destination

// plan is the task list of one run plus the exchange its tasks share.
type plan struct {
	tasks         []pipeline.Task
	x             *exchange.Exchange
	investigation int // index of the investigation task, -1 when skipped
	recorder      *ledger.Recorder
}

// plan builds one task per study and assay file, in attachment order, and
// the investigation task last. The investigation file is skipped when the
// first study continues an earlier file. Tasks are keyed by bare file name;
// invFile names the investigation task.
func (w *Writer) plan(inv *isa.Investigation, table destFunc, invFile string, invDest pipeline.Destination) *plan {
	p := &plan{x: exchange.New(w.logger), investigation: -1}
	tbl := render.Table{EOL: w.cfg.LineSeparator}
	studies := inv.Studies()
	for _, s := range studies {
		p.add(tbl, template.StudyFile, s.FileName, s.Rows(), s.Segment, table(s.FileName, s.Segment))
		for _, a := range s.Assays() {
			p.add(tbl, template.AssayFile, a.FileName, a.Rows(), a.Segment, table(a.FileName, a.Segment))
		}
	}
	if len(studies) > 0 && studies[0].Segment == isa.SegmentContinuation {
		return p
	}
	backoff := w.cfg.Backoff()
	lookup := func(ctx context.Context, s *isa.Study) (template.Summary, error) {
		pipeline.MarkWaiting(ctx)
		parts := make([]template.Summary, 0, 1+len(s.Assays()))
		sum, err := p.x.Await(ctx, s.FileName, backoff)
		if err != nil {
			return template.Summary{}, err
		}
		parts = append(parts, sum)
		for _, a := range s.Assays() {
			sum, err := p.x.Await(ctx, a.FileName, backoff)
			if err != nil {
				return template.Summary{}, err
			}
			parts = append(parts, sum)
		}
		return template.Merge(parts...), nil
	}
	p.investigation = len(p.tasks)
	p.tasks = append(p.tasks, pipeline.Task{
		Key:         invFile,
		Kind:        "investigation",
		Destination: invDest,
		Waits:       true,
		Produce: func(ctx context.Context, out io.Writer) error {
			return tbl.Investigation(ctx, out, inv, lookup)
		},
	})
	return p
}

func (p *plan) add(tbl render.Table, kind template.Kind, file string, rows []isa.Row, seg isa.Segment, dst pipeline.Destination) {
	// Keys are unique file names, checked when the tree was built.
	_ = p.x.Reserve(file)
	p.tasks = append(p.tasks, pipeline.Task{
		Key:         file,
		Kind:        kind.String(),
		Destination: dst,
		OnFailure:   func(err error) { _ = p.x.Fail(file, err) },
		Produce: func(ctx context.Context, out io.Writer) error {
			f, err := template.Unify(kind, rows)
			if err != nil {
				return err
			}
			if err := p.x.Publish(file, f.Summary()); err != nil {
				return err
			}
			header := tbl.Header(f)
			if p.recorder != nil {
				p.recorder.Snapshot(file, kind.String(), columns(header))
			}
			if dst == nil {
				return nil
			}
			if seg == isa.SegmentHead {
				if _, err := out.Write(header); err != nil {
					return err
				}
			}
			for _, r := range rows {
				if err := ctx.Err(); err != nil {
					return err
				}
				if _, err := out.Write(tbl.Row(f, r)); err != nil {
					return err
				}
			}
			return nil
		},
	})
}
