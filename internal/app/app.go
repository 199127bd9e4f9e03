package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/movin/internal/admin"
	"github.com/jon4hz/movin/internal/database"
	"github.com/jon4hz/movin/internal/gate"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/metrics"
	"github.com/jon4hz/movin/internal/session"
	"github.com/jon4hz/movin/internal/settings"
)

// ErrNotActivated is returned by Register when the handle was stored in the
// ledger but could not be made the active handle.
var ErrNotActivated = errors.New("handle was created but could not be made active")

// App owns the application state. Every method runs to completion while
// holding the lock, so a ledger write and the session refresh belonging to it
// are never interleaved with another mutation.
type App struct {
	mu sync.Mutex

	ledger    *ledger.Ledger
	settings  *settings.Store
	state     *session.State
	gate      *gate.Gate
	authority *admin.Authority
}

// New loads the settings, bootstraps the session and wires the gate and the
// admin authority on top of db.
func New(ctx context.Context, db database.DB, secret string) (*App, error) {
	s, err := settings.Load(ctx, db)
	if err != nil {
		return nil, err
	}
	l := ledger.New(db, s)
	st, err := session.Bootstrap(ctx, l, s)
	if err != nil {
		return nil, err
	}

	return &App{
		ledger:    l,
		settings:  s,
		state:     st,
		gate:      gate.New(l, st),
		authority: admin.New(secret, st, s, l),
	}, nil
}

// Snapshot returns the current session.
func (a *App) Snapshot() session.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Snapshot()
}

// Settings returns the current settings.
func (a *App) Settings() settings.AppSettings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.Current()
}

// LanguageConfirmed reports whether the first-run language prompt was answered.
func (a *App) LanguageConfirmed(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.LanguageConfirmed(ctx)
}

// ConfirmLanguage answers the first-run language prompt.
func (a *App) ConfirmLanguage(ctx context.Context, lang settings.Language) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings.ConfirmLanguage(ctx, lang)
}

// Register creates handle and makes it the active one. If only the second
// step fails the returned record is valid and the error wraps ErrNotActivated.
func (a *App) Register(ctx context.Context, handle string) (ledger.UserRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// the free limit may have been changed by the settings command
	if err := a.settings.Reload(ctx); err != nil {
		return ledger.UserRecord{}, err
	}
	rec, err := a.ledger.Register(ctx, handle)
	if err != nil {
		return rec, err
	}
	if err := a.state.SetActiveHandle(ctx, rec.Handle, rec.Credits); err != nil {
		log.Error("handle registered but not activated", "handle", rec.Handle, "error", err)
		return rec, fmt.Errorf("%w: %w", ErrNotActivated, err)
	}
	metrics.RecordRegistration()
	return rec, nil
}

// TryConsume spends one credit for a metered action of the given kind.
func (a *App) TryConsume(ctx context.Context, kind string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ok, err := a.gate.TryConsume(ctx)
	switch {
	case err != nil:
		log.Error("credit gate failed", "kind", kind, "error", err)
		return false, err
	case !ok:
		metrics.RecordGateDenial()
		return false, nil
	}
	if !a.state.Snapshot().IsAdmin {
		metrics.RecordCreditConsumed(kind)
	}
	return true, nil
}

// Mode returns whether the session is in admin mode.
func (a *App) Mode() admin.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authority.Mode()
}

// Authenticate enters admin mode if password matches.
func (a *App) Authenticate(password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.authority.Authenticate(password)
	metrics.RecordAdminLogin(err == nil)
	return err
}

// ExitAdmin leaves admin mode.
func (a *App) ExitAdmin() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.authority.Exit()
}

// UpdateSettings merges p into the settings. Admin only.
func (a *App) UpdateSettings(ctx context.Context, p settings.Patch) (settings.AppSettings, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authority.UpdateSettings(ctx, p)
}

// GrantCredits adds amount to handle. Admin only.
func (a *App) GrantCredits(ctx context.Context, handle string, amount int) (ledger.UserRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, err := a.authority.GrantCredits(ctx, handle, amount)
	if err != nil {
		return rec, err
	}
	metrics.RecordCreditsGranted(amount)
	return rec, nil
}

// Users lists every handle of the ledger. Admin only.
func (a *App) Users(ctx context.Context) ([]ledger.UserRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.authority.Mode() != admin.ModeAdmin {
		return nil, admin.ErrNotAdmin
	}
	return a.ledger.List(ctx)
}
