package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLockAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock := NewDirLock(dir)
	require.NoError(t, lock.TryLock())
	require.NoError(t, lock.Unlock())

	// Reacquirable after release
	require.NoError(t, lock.TryLock())
	require.NoError(t, lock.Unlock())
}

func TestDirLockUnlockWithoutLock(t *testing.T) {
	lock := NewDirLock(t.TempDir())
	assert.NoError(t, lock.Unlock())
}
