package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runGen(args ...string) (string, error) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateNextToDeclaration(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	in := filepath.Join(dir, "types.yaml")
	require.NoError(t, os.WriteFile(in, []byte("package: app\ntypes:\n  - {name: State, kind: persist, path: state.json}\n"), 0o644))

	out, err := runGen("--in", in, "--no-color")
	require.NoError(t, err)

	generated := filepath.Join(dir, "types_sealcfg.go")
	assert.Contains(t, out, "Wrote "+generated)

	src, err := os.ReadFile(generated)
	require.NoError(t, err)
	assert.Contains(t, string(src), "from types.yaml. DO NOT EDIT.")
	assert.Contains(t, string(src), `func (State) StoragePath() string { return "state.json" }`)
}

func TestGenerateToStdout(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(in, []byte("package: app\ntypes:\n  - {name: Session, kind: source}\n"), 0o644))

	out, err := runGen("-i", in, "-o", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "package app")
	assert.Contains(t, out, "func (Session) Default() Session { return Session{} }")
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	_, err := runGen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No declaration file specified")

	_, err = runGen("--in", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "File or directory not found")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("package: app\ntypes:\n  - {name: A, kind: secret, path: a.bin}\n"), 0o644))
	_, err = runGen("--in", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid declaration")
	assert.Contains(t, err.Error(), "namespace")
}
