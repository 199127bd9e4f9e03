package gate

import (
	"context"
	"errors"
	"testing"

	dbmock "github.com/jon4hz/movin/internal/database/mock"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/session"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db     *dbmock.MockDB
	ledger *ledger.Ledger
	state  *session.State
	gate   *Gate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbmock.NewMockDB()
	s, err := settings.Load(ctx, db)
	require.NoError(t, err)
	l := ledger.New(db, s)
	st, err := session.Bootstrap(ctx, l, s)
	require.NoError(t, err)
	return &fixture{db: db, ledger: l, state: st, gate: New(l, st)}
}

func (f *fixture) register(t *testing.T, handle string) {
	t.Helper()
	rec, err := f.ledger.Register(context.Background(), handle)
	require.NoError(t, err)
	require.NoError(t, f.state.SetActiveHandle(context.Background(), rec.Handle, rec.Credits))
}

func TestTryConsume_Registered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ali")

	for i := 9; i >= 0; i-- {
		ok, err := f.gate.TryConsume(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, f.state.Snapshot().Credits)

		rec, err := f.ledger.Get(ctx, "ali")
		require.NoError(t, err)
		assert.Equal(t, i, rec.Credits, "session and ledger must agree")
	}

	ok, err := f.gate.TryConsume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTryConsume_AdminNeverWrites(t *testing.T) {
	for _, balance := range []int{5, 0, -3} {
		f := newFixture(t)
		ctx := context.Background()
		f.register(t, "ali")
		_, err := f.ledger.GrantCredits(ctx, "ali", balance-10)
		require.NoError(t, err)
		f.state.RefreshCredits(balance)
		f.state.ToggleAdmin(true)

		writes := f.db.SetCalls[ledger.LedgerKey]
		for range 3 {
			ok, err := f.gate.TryConsume(ctx)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		rec, err := f.ledger.Get(ctx, "ali")
		require.NoError(t, err)
		assert.Equal(t, balance, rec.Credits)
		assert.Equal(t, writes, f.db.SetCalls[ledger.LedgerKey])
	}
}

func TestTryConsume_AnonymousPlaceholder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for range 10 {
		ok, err := f.gate.TryConsume(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := f.gate.TryConsume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, persisted := f.db.Raw(ledger.LedgerKey)
	assert.False(t, persisted)
}

func TestTryConsume_StaleCacheFollowsLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ali")

	// the ledger was drained behind the session's back
	_, err := f.ledger.GrantCredits(ctx, "ali", -10)
	require.NoError(t, err)

	ok, err := f.gate.TryConsume(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, f.state.Snapshot().Credits)
}

func TestTryConsume_GrantFromAnotherWriter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ali")

	for range 10 {
		ok, err := f.gate.TryConsume(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, 0, f.state.Snapshot().Credits)

	// a second ledger over the same store, like the grant command
	s, err := settings.Load(ctx, f.db)
	require.NoError(t, err)
	_, err = ledger.New(f.db, s).GrantCredits(ctx, "ali", 5)
	require.NoError(t, err)

	ok, err := f.gate.TryConsume(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, f.state.Snapshot().Credits)

	rec, err := f.ledger.Get(ctx, "ali")
	require.NoError(t, err)
	assert.Equal(t, 4, rec.Credits)
}

func TestTryConsume_StoreFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ali")

	f.db.SetError = errors.New("read-only")
	ok, err := f.gate.TryConsume(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, 10, f.state.Snapshot().Credits)
}
