package gate

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/session"
)

// Gate guards every metered action. It must be consulted before the
// corresponding remote call is dispatched.
type Gate struct {
	ledger *ledger.Ledger
	state  *session.State
}

// New creates a credit gate.
func New(l *ledger.Ledger, st *session.State) *Gate {
	return &Gate{
		ledger: l,
		state:  st,
	}
}

// TryConsume spends one credit of the active session.
// It returns false when the balance is exhausted; redirecting the user to the
// pricing view is left to the caller. Admins are never metered.
func (g *Gate) TryConsume(ctx context.Context) (bool, error) {
	snap := g.state.Snapshot()
	if snap.IsAdmin {
		return true, nil
	}

	// Anonymous users spend the unpersisted placeholder balance.
	if snap.Anonymous() {
		if snap.Credits <= 0 {
			log.Debug("credit gate closed", "credits", snap.Credits)
			return false, nil
		}
		g.state.RefreshCredits(snap.Credits - 1)
		return true, nil
	}

	// The ledger decides for registered handles. The cached balance may lag
	// behind a grant made by another writer of the store.
	credits, err := g.ledger.ConsumeCredit(ctx, snap.ActiveHandle)
	switch {
	case errors.Is(err, ledger.ErrInsufficientCredits):
		log.Debug("credit gate closed", "handle", snap.ActiveHandle, "credits", credits)
		g.state.RefreshCredits(credits)
		return false, nil
	case err != nil:
		return false, err
	}

	g.state.RefreshCredits(credits)
	return true, nil
}
