package admin

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/session"
	"github.com/jon4hz/movin/internal/settings"
)

var (
	ErrAuthenticationFailed = errors.New("incorrect password")
	ErrNotAdmin             = errors.New("admin mode required")
)

// Mode is the state of the authority.
type Mode string

const (
	ModeUser  Mode = "user"
	ModeAdmin Mode = "admin"
)

// Authority elevates the session into admin mode after a passphrase check.
// There is no lockout and no delay between attempts.
type Authority struct {
	secret   string
	state    *session.State
	settings *settings.Store
	ledger   *ledger.Ledger
}

// New creates an authority guarding the given secret phrase.
func New(secret string, st *session.State, s *settings.Store, l *ledger.Ledger) *Authority {
	return &Authority{
		secret:   Normalize(secret),
		state:    st,
		settings: s,
		ledger:   l,
	}
}

// Mode returns the current mode.
func (a *Authority) Mode() Mode {
	if a.state.Snapshot().IsAdmin {
		return ModeAdmin
	}
	return ModeUser
}

// Authenticate switches to admin mode if password matches the secret phrase.
func (a *Authority) Authenticate(password string) error {
	if Normalize(password) != a.secret {
		log.Warn("admin authentication failed")
		return ErrAuthenticationFailed
	}
	a.state.ToggleAdmin(true)
	log.Info("entered admin mode")
	return nil
}

// Exit leaves admin mode.
func (a *Authority) Exit() {
	a.state.ToggleAdmin(false)
	log.Info("left admin mode")
}

// UpdateSettings merges p into the settings and persists them immediately.
func (a *Authority) UpdateSettings(ctx context.Context, p settings.Patch) (settings.AppSettings, error) {
	if a.Mode() != ModeAdmin {
		return a.settings.Current(), ErrNotAdmin
	}
	return a.settings.Update(ctx, p)
}

// GrantCredits adds amount to any handle. If the handle is the active one the
// session balance is refreshed in the same step.
func (a *Authority) GrantCredits(ctx context.Context, handle string, amount int) (ledger.UserRecord, error) {
	if a.Mode() != ModeAdmin {
		return ledger.UserRecord{}, ErrNotAdmin
	}
	rec, err := a.ledger.GrantCredits(ctx, handle, amount)
	if err != nil {
		return rec, err
	}
	if rec.Handle == a.state.Snapshot().ActiveHandle {
		a.state.RefreshCredits(rec.Credits)
	}
	return rec, nil
}

var letterReplacer = strings.NewReplacer(
	"ي", "ی", // arabic yeh -> farsi yeh
	"ى", "ی", // alef maksura -> farsi yeh
	"ك", "ک", // arabic kaf -> keheh
)

// Normalize collapses whitespace runs to a single space, unifies the arabic
// and persian forms of yeh and kaf and trims the result.
func Normalize(s string) string {
	return letterReplacer.Replace(strings.Join(strings.Fields(s), " "))
}
