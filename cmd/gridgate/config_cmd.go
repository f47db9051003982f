package main

import (
	"fmt"
	"io"

	"github.com/sdu-escience/gridgate/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create gridgate configuration files",
	}
	cmd.AddCommand(
		newConfigShowCommand(g),
		newConfigInitCommand(),
		newConfigPathsCommand(),
	)
	return cmd
}

func newConfigShowCommand(g *globals) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return printConfig(cmd.OutOrStdout(), cfg, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "output format (yaml|properties)")
	return cmd
}

func printConfig(w io.Writer, cfg *config.Configuration, format string) error {
	switch format {
	case "yaml":
		out, err := cfg.YAML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case "properties":
		return cfg.WriteProperties(w)
	default:
		return fmt.Errorf("unknown format %q (use yaml or properties)", format)
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a commented sample configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteSample(args[0], force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite the target file if it already exists")
	return cmd
}

func newConfigPathsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "List the configuration search path in order",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.DefaultSearchPaths() {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
		},
	}
}
