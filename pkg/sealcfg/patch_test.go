package sealcfg_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/sealcfg/pkg/cfgerrors"
	"github.com/systmms/sealcfg/pkg/keystore"
	"github.com/systmms/sealcfg/pkg/sealcfg"
)

func TestPatchIsInertUntilApplied(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())

	before, err := sealcfg.Get[appSettings](c)
	require.NoError(t, err)

	patch := sealcfg.Upgrade("settings", appSettings{Theme: "patched", Width: 1})
	assert.Equal(t, "settings", patch.Key())
	assert.Equal(t, "patched", patch.Value().Theme)

	got, err := sealcfg.Get[appSettings](c)
	require.NoError(t, err)
	assert.Equal(t, before, got)

	require.NoError(t, patch.Apply(c))
	got, err = sealcfg.Get[appSettings](c)
	require.NoError(t, err)
	assert.Equal(t, appSettings{Theme: "patched", Width: 1}, got)

	// Applied values are dirty and written at Close.
	require.NoError(t, c.Close())
	raw, err := os.ReadFile(filepath.Join(testDir, "settings.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "patched")
}

func TestPatchAppliesOnce(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())
	defer c.Close()

	patch := sealcfg.Upgrade("settings", appSettings{Theme: "once"})
	require.NoError(t, patch.Apply(c))
	assert.ErrorIs(t, patch.Apply(c), sealcfg.ErrPatchApplied)
}

func TestPatchKeyMismatch(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())
	defer c.Close()

	patch := sealcfg.Upgrade("not-settings", appSettings{Theme: "x"})
	err := patch.Apply(c)
	assert.ErrorIs(t, err, cfgerrors.ErrTypeNotRegistered)

	got, err := sealcfg.Get[appSettings](c)
	require.NoError(t, err)
	assert.Equal(t, "dark", got.Theme, "a rejected patch changes nothing")
}

func TestPatchLoadsTargetFirst(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())
	defer c.Close()

	require.NoError(t, sealcfg.Upgrade("settings", appSettings{Theme: "cold"}).Apply(c))
	assert.Equal(t, 1, c.Len())
}

func TestUpgradeWith(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())
	defer c.Close()

	patch, err := sealcfg.UpgradeWith(c, "settings", func(cur appSettings) (appSettings, error) {
		cur.Width *= 2
		return cur, nil
	})
	require.NoError(t, err)

	got, err := sealcfg.Get[appSettings](c)
	require.NoError(t, err)
	assert.Equal(t, 80, got.Width)

	require.NoError(t, patch.Apply(c))
	got, err = sealcfg.Get[appSettings](c)
	require.NoError(t, err)
	assert.Equal(t, 160, got.Width)
}

func TestUpgradeWithError(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())
	defer c.Close()

	boom := errors.New("boom")
	patch, err := sealcfg.UpgradeWith(c, "settings", func(appSettings) (appSettings, error) {
		return appSettings{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, patch)
}

func TestUpgradeWithDoesNotHoldLock(t *testing.T) {
	resetDir(t)
	c := newConfig(keystore.NewMemory())
	defer c.Close()

	_, err := sealcfg.UpgradeWith(c, "settings", func(cur appSettings) (appSettings, error) {
		// Mutating the same type while computing must not deadlock.
		require.NoError(t, sealcfg.Update(c, func(s *appSettings) error {
			s.Theme = "concurrent"
			return nil
		}))
		return cur, nil
	})
	require.NoError(t, err)
}
