package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/systmms/sealcfg/internal/config"
	sferrors "github.com/systmms/sealcfg/internal/errors"
	"github.com/systmms/sealcfg/internal/logging"
	"github.com/systmms/sealcfg/internal/metrics"
	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/keys"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/persist"
)

// stdio is the path that selects stdin or stdout.
const stdio = "-"

// session holds what a command needs once settings are loaded.
type session struct {
	cfg    *config.Config
	store  keystore.Store
	keys   *keys.Manager
	engine *persist.Engine
}

func openSession(cfg *config.Config) (*session, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.New(false, true)
	}
	if err := cfg.Load(); err != nil {
		return nil, err
	}
	if cfg.Settings.Debug {
		cfg.Logger.SetDebug(true)
	}

	store, err := cfg.Store()
	if err != nil {
		return nil, err
	}
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()
	manager := keys.NewManager(store, keys.WithLogger(cfg.Logger), keys.WithRecorder(recorder))
	return &session{
		cfg:    cfg,
		store:  store,
		keys:   manager,
		engine: persist.NewEngine(codec, manager, persist.WithRecorder(recorder)),
	}, nil
}

// existing returns the stored keypair for namespace, refusing to create one.
func (s *session) existing(namespace string) (*keys.Keypair, error) {
	kp, err := s.keys.Load(namespace)
	if errors.Is(err, cfgerrors.ErrNotFound) {
		return nil, sferrors.UserError{
			Message:    fmt.Sprintf("No keypair stored for namespace %q", namespace),
			Suggestion: fmt.Sprintf("Run 'sealcfg keys ensure %s' to create one", namespace),
			Err:        err,
		}
	}
	return kp, err
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == stdio {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, cfgerrors.IO("read", "stdin", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, cfgerrors.NotFound("read", path)
		}
		return nil, cfgerrors.IO("read", path, err)
	}
	return data, nil
}

func requireNamespace(namespace string) error {
	if namespace == "" {
		return sferrors.UserError{
			Message:    "No namespace specified",
			Suggestion: "Pass --namespace with the namespace the file is sealed for",
		}
	}
	return nil
}
