//go:build sealcfg_default_dir

package sealcfg_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/sealcfg/pkg/sealcfg"
)

func TestLocationJoinsDefaultDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(sealcfg.ConfigDirEnv, dir)

	assert.Equal(t, filepath.Join(dir, "app.json"), sealcfg.Location("app.json"))
}
