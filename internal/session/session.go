package session

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/settings"
)

// Session is the currently active user as seen by the interface.
// Credits is a cached copy of the ledger balance of ActiveHandle.
type Session struct {
	ActiveHandle string `json:"activeHandle"`
	Credits      int    `json:"credits"`
	IsAdmin      bool   `json:"isAdmin"`
}

// Anonymous reports whether no handle has been registered yet.
func (s Session) Anonymous() bool {
	return s.ActiveHandle == ""
}

// State holds the session in memory. It is never persisted on its own and is
// rebuilt from the ledger and the settings on every start.
type State struct {
	ledger   *ledger.Ledger
	settings *settings.Store
	session  Session
}

// Bootstrap derives the session from the active handle pointer and the ledger.
// Without a resolvable pointer the session starts anonymous with the free limit
// as a placeholder balance.
func Bootstrap(ctx context.Context, l *ledger.Ledger, s *settings.Store) (*State, error) {
	st := &State{
		ledger:   l,
		settings: s,
		session: Session{
			Credits: s.FreeLimit(),
		},
	}

	handle, err := l.ActiveHandle(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap session: %w", err)
	}
	if handle == "" {
		log.Debug("starting anonymous session")
		return st, nil
	}

	records, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap session: %w", err)
	}
	rec, ok := records[handle]
	if !ok {
		log.Warn("active handle not found in ledger, starting anonymous", "handle", handle)
		return st, nil
	}

	st.session.ActiveHandle = rec.Handle
	st.session.Credits = rec.Credits
	log.Debug("restored session", "handle", rec.Handle, "credits", rec.Credits)
	return st, nil
}

// Snapshot returns a copy of the session.
func (st *State) Snapshot() Session {
	return st.session
}

// Settings returns the settings store the session was built with.
func (st *State) Settings() *settings.Store {
	return st.settings
}

// SetActiveHandle switches the session to handle with the given balance and
// writes the active handle pointer.
func (st *State) SetActiveHandle(ctx context.Context, handle string, credits int) error {
	if err := st.ledger.SetActiveHandle(ctx, handle); err != nil {
		return err
	}
	st.session.ActiveHandle = handle
	st.session.Credits = credits
	return nil
}

// RefreshCredits updates the cached balance after a ledger write for the active handle.
func (st *State) RefreshCredits(credits int) {
	st.session.Credits = credits
}

// ToggleAdmin enters or leaves admin mode. The ledger is not touched.
func (st *State) ToggleAdmin(admin bool) {
	st.session.IsAdmin = admin
}
