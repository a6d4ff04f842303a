package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"isatab/internal/manifest"
	"isatab/pkg/isatab"
)

func newTemplatesCmd(a *app) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Print the unified column layout of every study and assay file",
		RunE: func(*cobra.Command, []string) error {
			inv, err := manifest.Load(path)
			if err != nil {
				return err
			}
			headers, err := isatab.Headers(inv)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(headers); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&path, "manifest", "", "Investigation manifest (required)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
