package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/sealcfg/internal/codegen"
	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/logging"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		in      string
		out     string
		debug   bool
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "sealcfg-gen",
		Short: "Generate sealcfg capability methods from a YAML declaration",
		Long: `sealcfg-gen reads a YAML declaration of configuration types and writes the
Default, StoragePath, Namespace, ConfigKey and Codec methods sealcfg needs.

Use it from a go:generate directive:

  //go:generate sealcfg-gen --in sealcfg_types.yaml`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(debug, noColor)

			if in == "" {
				return sferrors.UserError{
					Message:    "No declaration file specified",
					Suggestion: "Pass --in with the path of the YAML declaration",
				}
			}

			data, err := os.ReadFile(in)
			if err != nil {
				return sferrors.SimplifyError(err)
			}

			decl, err := codegen.Parse(data)
			if err != nil {
				return sferrors.UserError{
					Message: "Invalid declaration " + in,
					Details: err.Error(),
					Err:     err,
				}
			}

			src, err := codegen.Generate(decl, filepath.Base(in))
			if err != nil {
				return err
			}

			if out == "" {
				out = defaultOutput(in)
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(src)
				return err
			}
			if err := writeFile(out, src); err != nil {
				return err
			}
			logger.Debug("generated %d types into %s", len(decl.Types), out)
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&in, "in", "i", "", "YAML declaration file")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output Go file ('-' for stdout, default <in>_sealcfg.go)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

// defaultOutput places the generated file next to the declaration.
func defaultOutput(in string) string {
	base := strings.TrimSuffix(in, filepath.Ext(in))
	return base + "_sealcfg.go"
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return sferrors.SimplifyError(err)
	}
	return nil
}
