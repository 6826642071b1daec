package commands

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/systmms/sealcfg/internal/config"
	"github.com/systmms/sealcfg/pkg/keys"
)

// NewKeysCommand creates the keys command with its ensure, show and delete
// subcommands.
func NewKeysCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage namespace keypairs",
		Long: `Manage the keypairs stored in the secret manager.

Each namespace owns one keypair. Files sealed for a namespace can only be
opened while its private key is present in the secret manager.`,
	}

	cmd.AddCommand(
		newKeysEnsureCommand(cfg),
		newKeysShowCommand(cfg),
		newKeysDeleteCommand(cfg),
	)

	return cmd
}

func newKeysEnsureCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <namespace>",
		Short: "Create the namespace keypair if it does not exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}

			kp, err := s.keys.GetOrCreate(args[0])
			if err != nil {
				return err
			}
			printKeypair(cmd.OutOrStdout(), kp)
			return nil
		},
	}
}

func newKeysShowCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <namespace>",
		Short: "Show the public half of a stored keypair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cfg)
			if err != nil {
				return err
			}

			kp, err := s.existing(args[0])
			if err != nil {
				return err
			}
			printKeypair(cmd.OutOrStdout(), kp)
			return nil
		},
	}
}

func newKeysDeleteCommand(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <namespace>",
		Short: "Delete a stored keypair",
		Long: `Delete the keypair stored for a namespace.

Every file sealed for the namespace becomes permanently unreadable. Use with
caution - this operation is irreversible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace := args[0]
			s, err := openSession(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !force {
				fmt.Fprintf(out, "⚠️  Files sealed for %q will become unreadable. Continue? (y/N): ", namespace)
				if !confirmed(cmd.InOrStdin()) {
					fmt.Fprintln(out, "Operation cancelled")
					return nil
				}
			}

			if err := s.keys.Delete(namespace); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Deleted keypair for %s\n", namespace)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Delete without confirmation")

	return cmd
}

func printKeypair(w io.Writer, kp *keys.Keypair) {
	fmt.Fprintf(w, "Namespace:   %s\n", kp.Namespace())
	fmt.Fprintf(w, "Algorithm:   %s\n", keys.Algorithm)
	fmt.Fprintf(w, "Public key:  %s\n", base64.StdEncoding.EncodeToString(kp.PublicKey()[:]))
	fmt.Fprintf(w, "Fingerprint: %s\n", kp.Fingerprint())
}

func confirmed(r io.Reader) bool {
	response, _ := bufio.NewReader(r).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}
