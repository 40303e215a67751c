package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapgo/rental-engine/store/sqlite"
)

func TestSlot_EmptyReportsNotOK(t *testing.T) {
	slot, err := sqlite.New(":memory:", "ledger.v1")
	require.NoError(t, err)
	t.Cleanup(func() { slot.Close() })

	_, ok, err := slot.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_SaveLoadClear(t *testing.T) {
	slot, err := sqlite.New(":memory:", "ledger.v1")
	require.NoError(t, err)
	t.Cleanup(func() { slot.Close() })

	ctx := context.Background()
	require.NoError(t, slot.Save(ctx, []byte(`{"riders":[]}`)))

	payload, ok, err := slot.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"riders":[]}`, string(payload))

	// Saves replace, not append.
	require.NoError(t, slot.Save(ctx, []byte(`{"riders":[1]}`)))
	payload, ok, err = slot.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"riders":[1]}`, string(payload))

	require.NoError(t, slot.Clear(ctx))
	_, ok, err = slot.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlot_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zapgo.db")
	ctx := context.Background()

	first, err := sqlite.New(path, "ledger.v1")
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, []byte("persisted")))
	require.NoError(t, first.Close())

	second, err := sqlite.New(path, "ledger.v1")
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	payload, ok, err := second.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "persisted", string(payload))
}

func TestSlot_KeysAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zapgo.db")
	ctx := context.Background()

	a, err := sqlite.New(path, "ledger.v1")
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	b, err := sqlite.New(path, "ledger.v2")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	require.NoError(t, a.Save(ctx, []byte("v1 data")))

	_, ok, err := b.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
