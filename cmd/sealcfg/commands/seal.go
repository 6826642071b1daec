package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/sealcfg/internal/config"
	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/secure"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/cipher"
	"github.com/systmms/sealcfg/pkg/persist"
)

// NewSealCommand creates the seal command, which encrypts a file for a
// namespace.
func NewSealCommand(cfg *config.Config) *cobra.Command {
	var (
		namespace string
		in        string
		out       string
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt a file for a namespace",
		Long: `Encrypt a file with the public key of a namespace.

The namespace keypair is created on first use. The sealed file is written
atomically with owner-only permissions.

Examples:
  sealcfg seal --namespace myapp --in secrets.json --out secrets.bin
  cat secrets.json | sealcfg seal --namespace myapp --out secrets.bin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNamespace(namespace); err != nil {
				return err
			}
			if out == "" {
				return sferrors.UserError{
					Message:    "No output file specified",
					Suggestion: "Pass --out with the path of the sealed file",
				}
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}

			plaintext, err := readInput(in, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer secure.Wipe(plaintext)

			if cipher.IsEncrypted(plaintext) && !force {
				return sferrors.UserError{
					Message:    "Input is already sealed",
					Suggestion: "Pass --force to seal it again",
				}
			}

			loc := persist.Location{Path: out, Namespace: namespace}
			if err := s.engine.WriteBytes(loc, plaintext); err != nil {
				return err
			}

			s.cfg.Logger.Debug("sealed %d bytes into %d", len(plaintext), cipher.SealedLen(len(plaintext)))
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Sealed %s for namespace %s\n", out, namespace)
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace whose keypair seals the file")
	cmd.Flags().StringVarP(&in, "in", "i", stdio, "Plaintext input file ('-' for stdin)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Sealed output file")
	cmd.Flags().BoolVar(&force, "force", false, "Seal input that is already sealed")

	return cmd
}

// NewOpenCommand creates the open command, which decrypts a sealed file.
func NewOpenCommand(cfg *config.Config) *cobra.Command {
	var (
		namespace string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "open <file>",
		Short: "Decrypt a sealed file",
		Long: `Decrypt a file sealed for a namespace and print its contents.

The namespace keypair must already exist; open never creates one.

Examples:
  sealcfg open --namespace myapp secrets.bin
  sealcfg open --namespace myapp --out secrets.json secrets.bin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireNamespace(namespace); err != nil {
				return err
			}

			s, err := openSession(cfg)
			if err != nil {
				return err
			}
			if _, err := s.existing(namespace); err != nil {
				return err
			}

			plaintext, err := s.engine.ReadBytes(persist.Location{Path: args[0], Namespace: namespace})
			if err != nil {
				return err
			}
			defer secure.Wipe(plaintext)

			if out == "" || out == stdio {
				if _, err := cmd.OutOrStdout().Write(plaintext); err != nil {
					return cfgerrors.IO("write", "stdout", err)
				}
				return nil
			}
			return persist.WriteFileAtomic(out, plaintext)
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace the file is sealed for")
	cmd.Flags().StringVarP(&out, "out", "o", stdio, "Plaintext output file ('-' for stdout)")

	return cmd
}
