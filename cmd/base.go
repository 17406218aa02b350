// Package cmd is the base package for the cardmesh executables.
package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardmesh/go-cardmesh/config"
)

var (
	// Version is the app's semantic version. Designed to be overwritten by make.
	Version string

	// Branch is the git branch used to build the App. Designed to be overwritten by make.
	Branch string

	// Commit is the git commit used to build the app. Designed to be overwritten by make.
	Commit string
)

// Configure loads the config file into conf and applies command line flags on top of it.
func Configure(c *cobra.Command, configPath string, conf *config.Config) error {
	return configure(afero.NewOsFs(), c, configPath, conf)
}

func configure(fs afero.Fs, c *cobra.Command, configPath string, conf *config.Config) error {
	// flags were parsed by cobra before the file is loaded, they are applied again on top of it
	var apply []func() error
	c.Flags().Visit(func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			values := slices.Clone(sv.GetSlice())
			apply = append(apply, func() error { return sv.Replace(values) })
			return
		}
		value := f.Value.String()
		apply = append(apply, func() error { return f.Value.Set(value) })
	})
	if err := config.Load(fs, configPath, conf); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	for _, fn := range apply {
		if err := fn(); err != nil {
			return fmt.Errorf("parsing flags: %w", err)
		}
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// VersionCmd returns the command that prints the version.
func VersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprint(c.OutOrStdout(), Version)
			if Commit != "" {
				fmt.Fprintf(c.OutOrStdout(), "+%s", Commit)
			}
			fmt.Fprintln(c.OutOrStdout())
		},
	}
}
