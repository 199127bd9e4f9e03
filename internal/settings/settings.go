package settings

import (
	"errors"
	"fmt"
	"regexp"
)

// ThemeMode is the color scheme of the interface.
type ThemeMode string

const (
	ThemeModeLight ThemeMode = "light"
	ThemeModeDark  ThemeMode = "dark"
)

// Language is a two-letter locale code.
type Language string

const (
	LanguageFA Language = "fa"
	LanguageEN Language = "en"
)

// ErrInvalidSettings is returned when a patch contains values outside their domain.
var ErrInvalidSettings = errors.New("invalid settings")

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// AppSettings is the process-wide configuration of the application.
type AppSettings struct {
	// FreeLimit is the number of credits a newly registered handle starts with.
	FreeLimit int `json:"freeLimit"`
	// TokenPrice is the price of one credit in Currency.
	TokenPrice int64 `json:"tokenPrice"`
	// Currency is the display name of the currency.
	Currency string `json:"currency"`
	// PrimaryColor is a hex color used for branding.
	PrimaryColor string `json:"primaryColor"`
	// ThemeMode is either light or dark.
	ThemeMode ThemeMode `json:"themeMode"`
	// Language is the interface language.
	Language Language `json:"language"`
	// LogoURL points to the branding logo.
	LogoURL string `json:"logoUrl"`
}

// Defaults returns the hardcoded settings every persisted override is layered on.
func Defaults() AppSettings {
	return AppSettings{
		FreeLimit:    10,
		TokenPrice:   100000,
		Currency:     "تومان",
		PrimaryColor: "#6366f1",
		ThemeMode:    ThemeModeLight,
		Language:     LanguageFA,
		LogoURL:      "https://cdn-icons-png.flaticon.com/512/2312/2312523.png",
	}
}

// Patch is a partial AppSettings. Nil fields are left untouched by Merge.
type Patch struct {
	FreeLimit    *int       `json:"freeLimit,omitempty"`
	TokenPrice   *int64     `json:"tokenPrice,omitempty"`
	Currency     *string    `json:"currency,omitempty"`
	PrimaryColor *string    `json:"primaryColor,omitempty"`
	ThemeMode    *ThemeMode `json:"themeMode,omitempty"`
	Language     *Language  `json:"language,omitempty"`
	LogoURL      *string    `json:"logoUrl,omitempty"`
}

// Merge layers the non-nil fields of p over base.
// Merging the same patch twice yields the same result as merging it once.
func Merge(base AppSettings, p Patch) AppSettings {
	if p.FreeLimit != nil {
		base.FreeLimit = *p.FreeLimit
	}
	if p.TokenPrice != nil {
		base.TokenPrice = *p.TokenPrice
	}
	if p.Currency != nil {
		base.Currency = *p.Currency
	}
	if p.PrimaryColor != nil {
		base.PrimaryColor = *p.PrimaryColor
	}
	if p.ThemeMode != nil {
		base.ThemeMode = *p.ThemeMode
	}
	if p.Language != nil {
		base.Language = *p.Language
	}
	if p.LogoURL != nil {
		base.LogoURL = *p.LogoURL
	}
	return base
}

// Validate checks the fields set in the patch.
func (p Patch) Validate() error {
	if p.FreeLimit != nil && *p.FreeLimit < 0 {
		return fmt.Errorf("%w: free limit must not be negative", ErrInvalidSettings)
	}
	if p.TokenPrice != nil && *p.TokenPrice < 0 {
		return fmt.Errorf("%w: token price must not be negative", ErrInvalidSettings)
	}
	if p.PrimaryColor != nil && !hexColor.MatchString(*p.PrimaryColor) {
		return fmt.Errorf("%w: primary color %q is not a hex color", ErrInvalidSettings, *p.PrimaryColor)
	}
	if p.ThemeMode != nil && !p.ThemeMode.Valid() {
		return fmt.Errorf("%w: unknown theme mode %q", ErrInvalidSettings, *p.ThemeMode)
	}
	if p.Language != nil && !p.Language.Valid() {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidSettings, *p.Language)
	}
	return nil
}

// IsEmpty reports whether no field is set.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Valid reports whether m is a known theme mode.
func (m ThemeMode) Valid() bool {
	return m == ThemeModeLight || m == ThemeModeDark
}

// Valid reports whether l is a supported language.
func (l Language) Valid() bool {
	return l == LanguageFA || l == LanguageEN
}
