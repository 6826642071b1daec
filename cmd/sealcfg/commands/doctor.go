package commands

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/sealcfg/internal/config"
	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/metrics"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/cipher"
	"github.com/systmms/sealcfg/pkg/keys"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/persist"
)

// DoctorNamespace is the namespace doctor uses for its self-test.
const DoctorNamespace = "sealcfg-doctor"

// CheckResult represents the outcome of one doctor check
type CheckResult struct {
	Name       string
	Status     string // ok, error, skipped
	Message    string
	Suggestion string
}

type doctorProbe struct {
	Written string `json:"written" yaml:"written"`
	Count   int    `json:"count" yaml:"count"`
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var (
		namespace   string
		keep        bool
		showMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the secret manager and run an encryption self-test",
		Long: `Verify that sealcfg can reach its secret manager and encrypt data.

This command checks:
- Settings file validity
- Secret manager access (a keypair is created for the test namespace)
- Encryption round trip across several chunks
- Encrypted file write and read back

The test keypair is deleted afterwards unless it existed before or --keep is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			results := runChecks(cfg, namespace, keep)

			displayCheckResults(out, results)
			if showMetrics {
				if err := displayMetrics(out); err != nil {
					return err
				}
			}

			passed := 0
			for _, result := range results {
				if result.Status != "error" {
					passed++
				}
			}
			fmt.Fprintf(out, "\nSummary: %d/%d checks passed\n", passed, len(results))
			if passed < len(results) {
				return sferrors.UserError{
					Message:    "some checks failed",
					Suggestion: "Fix the failing checks above and run 'sealcfg doctor' again",
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", DoctorNamespace, "Namespace used for the self-test")
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the test keypair")
	cmd.Flags().BoolVar(&showMetrics, "metrics", true, "Print operation counters")

	return cmd
}

func runChecks(cfg *config.Config, namespace string, keep bool) []CheckResult {
	var results []CheckResult

	s, err := openSession(cfg)
	if err != nil {
		results = append(results, failed("settings", err))
		return append(results,
			skipped("secret manager"), skipped("cipher"), skipped("persist"), skipped("cleanup"))
	}
	results = append(results, CheckResult{Name: "settings", Status: "ok", Message: settingsSource(cfg)})

	_, loadErr := s.keys.Load(namespace)
	preexisting := loadErr == nil

	backend := cfg.Settings.SecretManager.Type
	if cfg.Backend != "" {
		backend = cfg.Backend
	}

	kp, err := s.keys.GetOrCreate(namespace)
	if err != nil {
		result := failed("secret manager", err)
		if backend == keystore.BackendKeyring && keystore.Headless() {
			result.Suggestion = "No desktop session detected, so the OS keyring may be unreachable. " +
				"Use --backend aws-secretsmanager, azure-keyvault or gcp-secretmanager instead"
		}
		results = append(results, result)
		return append(results, skipped("cipher"), skipped("persist"), skipped("cleanup"))
	}
	results = append(results, CheckResult{
		Name:    "secret manager",
		Status:  "ok",
		Message: fmt.Sprintf("%s keypair %s", backend, kp.Fingerprint()[:12]),
	})

	results = append(results, checkCipher(kp))
	results = append(results, checkPersist(s, namespace))

	switch {
	case keep || preexisting:
		results = append(results, CheckResult{Name: "cleanup", Status: "skipped", Message: "keypair kept"})
	default:
		if err := s.keys.Delete(namespace); err != nil {
			results = append(results, failed("cleanup", err))
		} else {
			results = append(results, CheckResult{Name: "cleanup", Status: "ok", Message: "test keypair deleted"})
		}
	}

	return results
}

func checkCipher(kp *keys.Keypair) CheckResult {
	plaintext := make([]byte, 3*cipher.ChunkSize+17)
	if _, err := rand.Read(plaintext); err != nil {
		return failed("cipher", err)
	}

	sealed, err := cipher.Encrypt(kp, plaintext)
	if err != nil {
		return failed("cipher", err)
	}
	opened, err := cipher.Decrypt(kp, sealed)
	if err != nil {
		return failed("cipher", err)
	}
	if !bytes.Equal(plaintext, opened) {
		return failed("cipher", cfgerrors.Decrypt("self-test", errors.New("round trip changed the data")))
	}
	return CheckResult{
		Name:    "cipher",
		Status:  "ok",
		Message: fmt.Sprintf("%d bytes sealed into %d", len(plaintext), len(sealed)),
	}
}

func checkPersist(s *session, namespace string) CheckResult {
	dir, err := os.MkdirTemp("", "sealcfg-doctor-")
	if err != nil {
		return failed("persist", cfgerrors.IO("create temp dir", os.TempDir(), err))
	}
	defer os.RemoveAll(dir)

	loc := persist.Location{Path: filepath.Join(dir, "probe.bin"), Namespace: namespace}
	want := doctorProbe{Written: "sealcfg doctor", Count: 42}
	if err := s.engine.Store(loc, want); err != nil {
		return failed("persist", err)
	}

	var got doctorProbe
	if err := s.engine.Load(loc, &got); err != nil {
		return failed("persist", err)
	}
	if got != want {
		return failed("persist", cfgerrors.Serialization("decode", loc.Path, errors.New("value changed on disk")))
	}
	return CheckResult{Name: "persist", Status: "ok", Message: s.engine.Codec().Name() + " value written and read back"}
}

func failed(name string, err error) CheckResult {
	result := CheckResult{Name: name, Status: "error", Message: err.Error()}
	var userErr sferrors.UserError
	if errors.As(sferrors.Present(err), &userErr) {
		result.Message = userErr.Message
		result.Suggestion = userErr.Suggestion
	}
	return result
}

func skipped(name string) CheckResult {
	return CheckResult{Name: name, Status: "skipped", Message: "not run"}
}

func settingsSource(cfg *config.Config) string {
	if _, err := os.Stat(cfg.Path); err != nil {
		return "defaults (no " + config.FileName + ")"
	}
	return cfg.Path
}

// displayCheckResults shows check outcomes in a formatted table
func displayCheckResults(out io.Writer, results []CheckResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, result := range results {
		status := result.Status
		switch result.Status {
		case "ok":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		default:
			status = "- " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", result.Name, status, result.Message)
	}
	_ = w.Flush()

	for _, result := range results {
		if result.Suggestion != "" {
			fmt.Fprintf(out, "\n%s: 💡 %s\n", result.Name, result.Suggestion)
		}
	}
}

func displayMetrics(out io.Writer) error {
	samples, err := metrics.Snapshot()
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "METRIC\tLABELS\tVALUE\n")
	for _, sample := range samples {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%g\n", sample.Name, formatLabels(sample.Labels), sample.Value)
	}
	return w.Flush()
}

func formatLabels(labels map[string]string) string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		pairs = append(pairs, name+"="+labels[name])
	}
	return strings.Join(pairs, ",")
}
