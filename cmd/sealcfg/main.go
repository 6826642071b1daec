package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/sealcfg/cmd/sealcfg/commands"
	"github.com/systmms/sealcfg/internal/config"
	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", sferrors.Present(err))
		os.Exit(1)
	}
}

func run() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	// Global flags
	var (
		configFile string
		noColor    bool
		debug      bool
		backend    string
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "sealcfg",
		Short: "Manage sealcfg keypairs and encrypted configuration files",
		Long: `sealcfg manages the per-namespace keypairs kept in your secret manager
and seals or opens the files that applications persist with them.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.Backend = backend
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath(), "Settings file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Secret manager backend (keyring, memory, aws-secretsmanager, azure-keyvault, gcp-secretmanager)")

	rootCmd.AddCommand(
		commands.NewKeysCommand(cfg),
		commands.NewSealCommand(cfg),
		commands.NewOpenCommand(cfg),
		commands.NewDoctorCommand(cfg),
		commands.NewCompletionCommand(cfg),
	)

	return rootCmd
}
