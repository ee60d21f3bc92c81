package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vcmap/internal/dataset"
)

func runInspect(cmd *cobra.Command, flags *rootFlags, path string) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ds, err := dataset.Load(path, dataset.Options{Aliases: cfg.Manifest.Aliases})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file:    %s (%d bytes, modified %s)\n", ds.Source.Path, ds.Source.Size, ds.Source.ModTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "firms:   %d\n", len(ds.Firms))
	fmt.Fprintf(out, "dropped: %d\n", ds.Dropped)
	fmt.Fprintf(out, "sectors: %d\n", len(ds.Sectors))
	for _, s := range ds.Sectors {
		fmt.Fprintf(out, "  %s\n", s)
	}
	fmt.Fprintf(out, "stages:  %d\n", len(ds.Stages))
	for _, s := range ds.Stages {
		fmt.Fprintf(out, "  %s\n", s)
	}
	if len(ds.Firms) == 0 {
		fmt.Fprintln(out, "warning: no firm has valid coordinates")
	}
	return nil
}
