package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/movin/internal/database"
)

// Storage keys.
const (
	SettingsKey = "movin_settings"
	LanguageKey = "movin_lang"
)

// Store holds the current AppSettings and persists them.
type Store struct {
	db      database.DB
	current AppSettings
}

// Load reads the persisted settings and merges them over the defaults.
// A missing or malformed blob yields the defaults.
func Load(ctx context.Context, db database.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the persisted settings. Other writers of the store, such as
// the settings command, are picked up this way.
func (s *Store) Reload(ctx context.Context) error {
	next := Defaults()

	raw, ok, err := s.db.Get(ctx, SettingsKey)
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if ok {
		var p Patch
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			log.Warn("ignoring malformed settings", "key", SettingsKey, "error", err)
		} else {
			next = Merge(next, dropInvalid(p))
		}
	}

	lang, ok, err := s.db.Get(ctx, LanguageKey)
	if err != nil {
		return fmt.Errorf("failed to read confirmed language: %w", err)
	}
	if ok && Language(lang).Valid() {
		next.Language = Language(lang)
	}

	s.current = next
	return nil
}

// dropInvalid clears the fields of a persisted patch that fail validation so
// that their defaults apply.
func dropInvalid(p Patch) Patch {
	check := func(field string, single Patch) bool {
		if err := single.Validate(); err != nil {
			log.Warn("ignoring invalid persisted setting", "field", field, "error", err)
			return false
		}
		return true
	}

	if p.FreeLimit != nil && !check("freeLimit", Patch{FreeLimit: p.FreeLimit}) {
		p.FreeLimit = nil
	}
	if p.TokenPrice != nil && !check("tokenPrice", Patch{TokenPrice: p.TokenPrice}) {
		p.TokenPrice = nil
	}
	if p.PrimaryColor != nil && !check("primaryColor", Patch{PrimaryColor: p.PrimaryColor}) {
		p.PrimaryColor = nil
	}
	if p.ThemeMode != nil && !check("themeMode", Patch{ThemeMode: p.ThemeMode}) {
		p.ThemeMode = nil
	}
	if p.Language != nil && !check("language", Patch{Language: p.Language}) {
		p.Language = nil
	}
	return p
}

// Current returns a copy of the current settings.
func (s *Store) Current() AppSettings {
	return s.current
}

// FreeLimit returns the number of credits a new handle starts with.
func (s *Store) FreeLimit() int {
	return s.current.FreeLimit
}

// Update validates p, merges it into the persisted settings and stores the result.
func (s *Store) Update(ctx context.Context, p Patch) (AppSettings, error) {
	if err := p.Validate(); err != nil {
		return s.current, err
	}
	if err := s.Reload(ctx); err != nil {
		return s.current, err
	}

	next := Merge(s.current, p)
	data, err := json.Marshal(next)
	if err != nil {
		return s.current, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.db.Set(ctx, SettingsKey, string(data)); err != nil {
		return s.current, fmt.Errorf("failed to persist settings: %w", err)
	}

	s.current = next
	log.Debug("settings updated", "settings", next)
	return next, nil
}

// LanguageConfirmed reports whether the user already confirmed a language.
func (s *Store) LanguageConfirmed(ctx context.Context) (bool, error) {
	_, ok, err := s.db.Get(ctx, LanguageKey)
	if err != nil {
		return false, fmt.Errorf("failed to read confirmed language: %w", err)
	}
	return ok, nil
}

// ConfirmLanguage switches the interface language and remembers the choice.
// The settings blob itself is not rewritten.
func (s *Store) ConfirmLanguage(ctx context.Context, lang Language) error {
	if !lang.Valid() {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidSettings, lang)
	}
	if err := s.db.Set(ctx, LanguageKey, string(lang)); err != nil {
		return fmt.Errorf("failed to persist language: %w", err)
	}
	s.current.Language = lang
	return nil
}
