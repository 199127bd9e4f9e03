package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/movin/internal/database"
	"github.com/samber/lo"
)

// Storage keys.
const (
	LedgerKey       = "movin_users_db_v4"
	ActiveHandleKey = "movin_current_user_id"
)

var (
	ErrEmptyHandle            = errors.New("handle cannot be empty")
	ErrHandleTaken            = errors.New("handle is already taken")
	ErrHandleNotFound         = errors.New("handle not found")
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrMalformedPersistedData = errors.New("malformed persisted data")
)

// FreeLimiter provides the starting balance of new handles.
type FreeLimiter interface {
	FreeLimit() int
}

// UserRecord is the balance of a single handle.
type UserRecord struct {
	Handle  string `json:"handle"`
	Credits int    `json:"credits"`
}

// entry is the persisted shape of a record, keyed by handle in the blob.
type entry struct {
	Credits int `json:"credits"`
}

// Ledger maps handles to credit balances.
// All writes rewrite the whole mapping under LedgerKey.
type Ledger struct {
	db     database.DB
	limits FreeLimiter
}

// New creates a ledger backed by db.
func New(db database.DB, limits FreeLimiter) *Ledger {
	return &Ledger{
		db:     db,
		limits: limits,
	}
}

// NormalizeHandle trims and lowercases a handle.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimSpace(handle))
}

// Load returns the full mapping. A missing or malformed blob yields an empty mapping.
func (l *Ledger) Load(ctx context.Context) (map[string]UserRecord, error) {
	entries, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	records := make(map[string]UserRecord, len(entries))
	for handle, e := range entries {
		records[handle] = UserRecord{Handle: handle, Credits: e.Credits}
	}
	return records, nil
}

// Get returns the record of a single handle.
func (l *Ledger) Get(ctx context.Context, handle string) (UserRecord, error) {
	handle = NormalizeHandle(handle)
	entries, err := l.read(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	e, ok := entries[handle]
	if !ok {
		return UserRecord{}, ErrHandleNotFound
	}
	return UserRecord{Handle: handle, Credits: e.Credits}, nil
}

// List returns all records sorted by handle.
func (l *Ledger) List(ctx context.Context) ([]UserRecord, error) {
	records, err := l.Load(ctx)
	if err != nil {
		return nil, err
	}
	list := lo.Values(records)
	sort.Slice(list, func(i, j int) bool { return list[i].Handle < list[j].Handle })
	return list, nil
}

// Register creates a new handle with the configured free credits.
// Making it the active handle is left to the session.
func (l *Ledger) Register(ctx context.Context, handle string) (UserRecord, error) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return UserRecord{}, ErrEmptyHandle
	}

	entries, err := l.read(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	if _, ok := entries[handle]; ok {
		return UserRecord{}, ErrHandleTaken
	}

	credits := l.limits.FreeLimit()
	entries[handle] = entry{Credits: credits}
	if err := l.write(ctx, entries); err != nil {
		return UserRecord{}, err
	}

	log.Info("registered handle", "handle", handle, "credits", credits)
	return UserRecord{Handle: handle, Credits: credits}, nil
}

// GrantCredits adds amount to the balance of handle. Negative amounts are allowed.
func (l *Ledger) GrantCredits(ctx context.Context, handle string, amount int) (UserRecord, error) {
	handle = NormalizeHandle(handle)
	entries, err := l.read(ctx)
	if err != nil {
		return UserRecord{}, err
	}
	e, ok := entries[handle]
	if !ok {
		return UserRecord{}, ErrHandleNotFound
	}

	e.Credits += amount
	entries[handle] = e
	if err := l.write(ctx, entries); err != nil {
		return UserRecord{}, err
	}

	log.Info("granted credits", "handle", handle, "amount", amount, "credits", e.Credits)
	return UserRecord{Handle: handle, Credits: e.Credits}, nil
}

// ConsumeCredit takes exactly one credit from handle and returns the new balance.
func (l *Ledger) ConsumeCredit(ctx context.Context, handle string) (int, error) {
	handle = NormalizeHandle(handle)
	entries, err := l.read(ctx)
	if err != nil {
		return 0, err
	}
	e, ok := entries[handle]
	if !ok {
		return 0, ErrHandleNotFound
	}
	if e.Credits <= 0 {
		return e.Credits, ErrInsufficientCredits
	}

	e.Credits--
	entries[handle] = e
	if err := l.write(ctx, entries); err != nil {
		return 0, err
	}

	log.Debug("consumed credit", "handle", handle, "credits", e.Credits)
	return e.Credits, nil
}

// ActiveHandle returns the last registered or loaded handle, or an empty string.
func (l *Ledger) ActiveHandle(ctx context.Context) (string, error) {
	handle, _, err := l.db.Get(ctx, ActiveHandleKey)
	if err != nil {
		return "", fmt.Errorf("failed to read active handle: %w", err)
	}
	return handle, nil
}

// SetActiveHandle writes the active handle pointer.
func (l *Ledger) SetActiveHandle(ctx context.Context, handle string) error {
	if err := l.db.Set(ctx, ActiveHandleKey, handle); err != nil {
		return fmt.Errorf("failed to write active handle: %w", err)
	}
	return nil
}

func (l *Ledger) read(ctx context.Context) (map[string]entry, error) {
	raw, ok, err := l.db.Get(ctx, LedgerKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	entries := make(map[string]entry)
	if !ok {
		return entries, nil
	}
	if err := decode(raw, entries); err != nil {
		log.Warn("treating ledger as empty", "key", LedgerKey, "error", err)
		return make(map[string]entry), nil
	}
	return entries, nil
}

func (l *Ledger) write(ctx context.Context, entries map[string]entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	if err := l.db.Set(ctx, LedgerKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist ledger: %w", err)
	}
	return nil
}

func decode(raw string, into map[string]entry) error {
	if err := json.Unmarshal([]byte(raw), &into); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPersistedData, err)
	}
	return nil
}
