package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vcmap/internal/config"
)

type rootFlags struct {
	data     string
	addr     string
	manifest string
}

func main() {
	os.Exit(execute(newRootCmd()))
}

// execute runs root and reports a failure on its error stream. Errors are
// silenced inside cobra so they are printed exactly once, here.
func execute(root *cobra.Command) int {
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "vcmap:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "vcmap",
		Short:         "Serve the venture-capital firm map",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, flags)
		},
	}
	root.PersistentFlags().StringVar(&flags.data, "data", "", "path to the firm CSV (overrides VCMAP_DATA)")
	root.PersistentFlags().StringVar(&flags.addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	root.PersistentFlags().StringVar(&flags.manifest, "manifest", "", "dataset manifest YAML (overrides VCMAP_MANIFEST)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP dashboard and API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd, flags)
			},
		},
		&cobra.Command{
			Use:   "inspect <csv>",
			Short: "Load a firm CSV and print its counts and tags",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runInspect(cmd, flags, args[0])
			},
		},
	)
	return root
}

// loadConfig resolves settings from .env, the environment and the flags, in
// increasing precedence.
func loadConfig(flags *rootFlags) (config.Config, error) {
	config.LoadDotEnv()

	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if flags.data != "" {
		cfg.DataPath = flags.data
	}
	if flags.addr != "" {
		cfg.HTTPAddr = flags.addr
	}
	if flags.manifest != "" {
		cfg.ManifestPath = flags.manifest
		if err := cfg.LoadManifest(); err != nil {
			return config.Config{}, fmt.Errorf("manifest: %w", err)
		}
	}
	return cfg, nil
}
