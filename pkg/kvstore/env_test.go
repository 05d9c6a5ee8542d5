package kvstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/milli-core/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func TestOpenCreatesVersionFile(t *testing.T) {
	dir := t.TempDir()
	env, err := Open(EnvConfig{Dir: dir})
	require.NoError(t, err)
	defer env.Close()

	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	require.NoError(t, err)
	assert.Equal(t, EngineVersion.String()+"\n", string(data))
}

func TestOpenRejectsMissingVersionOnExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataFileName), []byte("not a real bbolt file"), 0o600))

	_, err := Open(EnvConfig{Dir: dir})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeCorruption))
}

func TestOpenRejectsNewerVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("99.0.0\n"), 0o644))

	_, err := Open(EnvConfig{Dir: dir})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestOpenRejectsTooOldVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("0.1.0\n"), 0o644))

	_, err := Open(EnvConfig{Dir: dir})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
}

func TestOpenUpgradesInPlace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, versionFileName), []byte("0.9.0\n"), 0o644))

	env, err := Open(EnvConfig{Dir: dir})
	require.NoError(t, err)
	defer env.Close()

	data, err := os.ReadFile(filepath.Join(dir, versionFileName))
	require.NoError(t, err)
	assert.Equal(t, EngineVersion.String()+"\n", string(data))
}

func TestUpdateAndView(t *testing.T) {
	dir := t.TempDir()
	env, err := Open(EnvConfig{Dir: dir})
	require.NoError(t, err)
	defer env.Close()

	bucket := []byte("test-bucket")
	err = env.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	err = env.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		require.NotNil(t, b)
		assert.Equal(t, []byte("v"), b.Get([]byte("k")))
		return nil
	})
	require.NoError(t, err)
}

func TestReadOnlyEnvironmentRejectsUpdate(t *testing.T) {
	dir := t.TempDir()
	env, err := Open(EnvConfig{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, env.Close())

	roEnv, err := Open(EnvConfig{Dir: dir, ReadOnly: true})
	require.NoError(t, err)
	defer roEnv.Close()

	err = roEnv.Update(func(tx *bolt.Tx) error { return nil })
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
}

func TestInstanceUIDPersists(t *testing.T) {
	dir := t.TempDir()
	calls := 0
	gen := func() string { calls++; return "fixed-uid" }

	uid1, err := InstanceUID(dir, gen)
	require.NoError(t, err)
	uid2, err := InstanceUID(dir, gen)
	require.NoError(t, err)

	assert.Equal(t, "fixed-uid", uid1)
	assert.Equal(t, uid1, uid2)
	assert.Equal(t, 1, calls)
}
