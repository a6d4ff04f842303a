package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"isatab/internal/blob"
	"isatab/internal/ledger"
	"isatab/internal/manifest"
	"isatab/internal/observability"
	"isatab/pkg/isatab"
)

type writeOptions struct {
	manifest    string
	out         string
	name        string
	overwrite   bool
	stdout      bool
	recursive   bool
	store       string
	metricsFile string
	traceFile   string
}

func newWriteCmd(a *app) *cobra.Command {
	var opts writeOptions
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Render a manifest to files, stdout or a blob store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.write(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "Investigation manifest (required)")
	cmd.Flags().StringVar(&opts.out, "out", ".", "Output directory, or key prefix with --store")
	cmd.Flags().StringVar(&opts.name, "name", "", "Investigation file base name (default: investigation identifier)")
	cmd.Flags().BoolVar(&opts.overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "Write the investigation file to stdout")
	cmd.Flags().BoolVar(&opts.recursive, "recursive", false, "With --stdout, write every file to stdout one after another")
	cmd.Flags().StringVar(&opts.store, "store", "", "Upload to a blob store: fs, s3 or memory")
	cmd.Flags().StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus text metrics to this file after the run")
	cmd.Flags().StringVar(&opts.traceFile, "trace-file", "", "Append JSON span records to this file")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func (a *app) write(cmd *cobra.Command, opts writeOptions) error {
	ctx := cmd.Context()
	inv, err := manifest.Load(opts.manifest)
	if err != nil {
		return err
	}
	name := opts.name
	if name == "" {
		name = inv.Identifier
	}

	reg := prometheus.NewRegistry()
	prom, err := observability.NewPrometheusRecorder(reg)
	if err != nil {
		return err
	}
	metrics := observability.Multi{prom, observability.NewExpvarMetricsRecorder("")}

	var tracer observability.Tracer = observability.NewOTelTracer(otel.Tracer("isatab"))
	if opts.traceFile != "" {
		f, err := os.OpenFile(opts.traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		tracer = observability.NewJSONTracer(f)
	}

	store, err := ledger.Open(ctx, a.cfg.Ledger)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	w := isatab.New(
		isatab.WithConfig(a.cfg),
		isatab.WithLogger(a.logger),
		isatab.WithMetrics(metrics),
		isatab.WithTracer(tracer),
		isatab.WithLedger(store),
	)

	var report isatab.Report
	switch {
	case opts.stdout && opts.recursive:
		report, err = w.StreamRecursively(ctx, inv, a.stdout, false)
	case opts.stdout:
		report, err = w.StreamInvestigation(ctx, inv, a.stdout, false)
	case opts.recursive:
		return errors.New("--recursive requires --stdout")
	case opts.store != "":
		settings := a.cfg.Blob
		settings.Driver = blob.Driver(opts.store)
		target, oerr := blob.Open(ctx, settings)
		if oerr != nil {
			return fmt.Errorf("open blob store: %w", oerr)
		}
		report, err = w.WriteObjects(ctx, inv, target, opts.out, name)
	default:
		report, err = w.WriteFiles(ctx, inv, opts.out, name, opts.overwrite)
	}

	if opts.metricsFile != "" {
		if merr := prometheus.WriteToTextfile(opts.metricsFile, reg); merr != nil {
			a.logger.Warn("metrics file not written", "path", opts.metricsFile, "error", merr)
		}
	}
	if err != nil {
		return err
	}
	if !opts.stdout {
		for _, f := range report.Files {
			fmt.Fprintf(a.stdout, "%s\t%d\n", f.Destination, f.Bytes)
		}
	}
	return nil
}
