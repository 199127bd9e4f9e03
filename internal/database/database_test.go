package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "data", "movin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_GetMissingKey(t *testing.T) {
	c := newTestClient(t)

	value, ok, err := c.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestClient_SetAndOverwrite(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "movin_lang", "fa"))
	value, ok, err := c.Get(ctx, "movin_lang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "fa", value)

	require.NoError(t, c.Set(ctx, "movin_lang", "en"))
	value, ok, err = c.Get(ctx, "movin_lang")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "en", value)
}

func TestClient_Keys(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "b", "2"))
	require.NoError(t, c.Set(ctx, "a", "1"))
	require.NoError(t, c.Set(ctx, "b", "3"))

	keys, err := c.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestClient_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "movin.db")
	ctx := context.Background()

	c, err := New(path)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "movin_current_user_id", "ali"))
	require.NoError(t, c.Close())

	c, err = New(path)
	require.NoError(t, err)
	defer c.Close() //nolint:errcheck

	value, ok, err := c.Get(ctx, "movin_current_user_id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ali", value)
}
